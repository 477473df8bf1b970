package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

const idempotencyPrefix = "idem:"

// IdempotencyEntry records a processed correlation id together with a hash
// of the submitted payload and the serialised result of the first run.
type IdempotencyEntry struct {
	PayloadHash string          `json:"payload_hash"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IdempotencyStore persists processed correlation ids.
type IdempotencyStore struct {
	store docstore.Store
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(store docstore.Store) *IdempotencyStore {
	return &IdempotencyStore{store: store}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// Lookup returns the entry recorded for key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (IdempotencyEntry, bool, error) {
	if s == nil {
		return IdempotencyEntry{}, false, errors.New("idempotency store not initialised")
	}
	doc, err := s.store.Get(ctx, idempotencyPrefix+key)
	if errors.Is(err, docstore.ErrNotFound) {
		return IdempotencyEntry{}, false, nil
	}
	if err != nil {
		return IdempotencyEntry{}, false, err
	}
	var entry IdempotencyEntry
	if err := json.Unmarshal(doc.Value, &entry); err != nil {
		return IdempotencyEntry{}, false, err
	}
	return entry, true, nil
}

// Insert records the entry for key, failing if the key was already used.
func (s *IdempotencyStore) Insert(ctx context.Context, key string, entry IdempotencyEntry) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := s.store.Put(ctx, idempotencyPrefix+key, value, 0); err != nil {
		if errors.Is(err, docstore.ErrVersionConflict) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Complete stores the serialised result against an already-inserted key so
// later resubmissions can be answered with the first outcome.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, result json.RawMessage) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	entry, found, err := s.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("idempotency key not reserved")
	}
	entry.Result = result
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.store.Put(ctx, idempotencyPrefix+key, value, docstore.VersionAny)
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	return s.store.Delete(ctx, idempotencyPrefix+key)
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	docs, err := s.store.ListPrefix(ctx, idempotencyPrefix)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		var entry IdempotencyEntry
		if err := json.Unmarshal(doc.Value, &entry); err != nil {
			continue
		}
		if entry.CreatedAt.Before(cutoff) {
			if err := s.store.Delete(ctx, doc.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
