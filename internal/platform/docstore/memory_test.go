package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryPutVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	version, err := store.Put(ctx, "ledger:a", []byte(`{"qty":1}`), 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)

	_, err = store.Put(ctx, "ledger:a", []byte(`{"qty":2}`), 0)
	require.ErrorIs(t, err, ErrVersionConflict)

	_, err = store.Put(ctx, "ledger:a", []byte(`{"qty":2}`), 5)
	require.ErrorIs(t, err, ErrVersionConflict)

	version, err = store.Put(ctx, "ledger:a", []byte(`{"qty":2}`), 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, version)

	doc, err := store.Get(ctx, "ledger:a")
	require.NoError(t, err)
	require.JSONEq(t, `{"qty":2}`, string(doc.Value))

	_, err = store.Get(ctx, "ledger:missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRangeOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, "kardex:a", Record{ID: "b", At: base, Value: []byte("2")}))
	require.NoError(t, store.Append(ctx, "kardex:a", Record{ID: "a", At: base, Value: []byte("1")}))
	require.NoError(t, store.Append(ctx, "kardex:a", Record{ID: "c", At: base.Add(-time.Hour), Value: []byte("0")}))

	recs, err := store.Range(ctx, "kardex:a", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, []string{"c", "a", "b"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})

	recs, err = store.Range(ctx, "kardex:a", base, time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestMemoryListPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_, err := store.Put(ctx, "lot:l2", []byte("{}"), 0)
	require.NoError(t, err)
	_, err = store.Put(ctx, "lot:l1", []byte("{}"), 0)
	require.NoError(t, err)
	_, err = store.Put(ctx, "ledger:x", []byte("{}"), 0)
	require.NoError(t, err)

	docs, err := store.ListPrefix(ctx, "lot:")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "lot:l1", docs[0].Key)
	require.Equal(t, "lot:l2", docs[1].Key)
}
