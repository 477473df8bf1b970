package docstore

import (
	"context"
	"errors"
	"time"
)

// VersionAny skips the compare-and-swap check on Put.
const VersionAny int64 = -1

// Document is a versioned value stored under a logical key.
type Document struct {
	Key     string
	Value   []byte
	Version int64
}

// Record is a single append-only journal entry. Records are totally ordered
// by (At, ID) within a journal.
type Record struct {
	ID    string
	At    time.Time
	Value []byte
}

// ErrNotFound indicates a missing document.
var ErrNotFound = errors.New("docstore: document not found")

// ErrVersionConflict indicates the expected version no longer matches.
var ErrVersionConflict = errors.New("docstore: version conflict")

// Store is the key-addressable document store the engine persists into.
// Put with expectedVersion 0 requires the key to be absent; VersionAny
// writes unconditionally. Append never rewrites existing records.
type Store interface {
	Get(ctx context.Context, key string) (Document, error)
	Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) ([]Document, error)
	Append(ctx context.Context, journal string, rec Record) error
	Range(ctx context.Context, journal string, from, to time.Time) ([]Record, error)
}
