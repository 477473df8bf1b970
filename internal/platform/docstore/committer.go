package docstore

import "context"

// Committer is an optional capability: apply a versioned document put and a
// journal append as one committed unit. Callers fall back to sequential
// Put-then-Append (safe under per-key serialisation) when the store does not
// implement it.
type Committer interface {
	PutAppend(ctx context.Context, key string, value []byte, expectedVersion int64, journal string, rec Record) (int64, error)
}

// PutAppend applies the put and the append inside the store's single mutex.
func (m *Memory) PutAppend(ctx context.Context, key string, value []byte, expectedVersion int64, journal string, rec Record) (int64, error) {
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
	rec.Value = append([]byte(nil), rec.Value...)
	m.journals[journal] = append(m.journals[journal], rec)
	return next, nil
}
