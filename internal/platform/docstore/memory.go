package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local tooling.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]Document
	journals map[string][]Record
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]Document),
		journals: make(map[string][]Record),
	}
}

// Get returns the document stored under key.
func (m *Memory) Get(ctx context.Context, key string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDoc(doc), nil
}

// Put writes value under key, enforcing the expected version.
func (m *Memory) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.docs[key]
	switch {
	case expectedVersion == VersionAny:
	case expectedVersion == 0 && exists:
		return 0, ErrVersionConflict
	case expectedVersion > 0 && (!exists || current.Version != expectedVersion):
		return 0, ErrVersionConflict
	}
	next := current.Version + 1
	m.docs[key] = Document{Key: key, Value: append([]byte(nil), value...), Version: next}
	return next, nil
}

// Delete removes the document stored under key, if any.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

// ListPrefix returns all documents whose key starts with prefix, key-ordered.
func (m *Memory) ListPrefix(ctx context.Context, prefix string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for key, doc := range m.docs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, cloneDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Append adds a record to the named journal.
func (m *Memory) Append(ctx context.Context, journal string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Value = append([]byte(nil), rec.Value...)
	m.journals[journal] = append(m.journals[journal], rec)
	return nil
}

// Range returns journal records within [from, to] ordered by (At, ID).
// Zero bounds are open ended.
func (m *Memory) Range(ctx context.Context, journal string, from, to time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.journals[journal] {
		if !from.IsZero() && rec.At.Before(from) {
			continue
		}
		if !to.IsZero() && rec.At.After(to) {
			continue
		}
		out = append(out, Record{ID: rec.ID, At: rec.At, Value: append([]byte(nil), rec.Value...)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}

func cloneDoc(doc Document) Document {
	return Document{Key: doc.Key, Value: append([]byte(nil), doc.Value...), Version: doc.Version}
}
