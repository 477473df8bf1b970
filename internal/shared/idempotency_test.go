package shared

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

func TestIdempotencyInsertLookupComplete(t *testing.T) {
	s := NewIdempotencyStore(docstore.NewMemory())
	ctx := context.Background()

	_, found, err := s.Lookup(ctx, "corr-1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Insert(ctx, "corr-1", IdempotencyEntry{PayloadHash: "abc"}))
	require.ErrorIs(t, s.Insert(ctx, "corr-1", IdempotencyEntry{PayloadHash: "abc"}), ErrIdempotencyConflict)

	entry, found, err := s.Lookup(ctx, "corr-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "abc", entry.PayloadHash)
	require.Empty(t, entry.Result)

	require.NoError(t, s.Complete(ctx, "corr-1", json.RawMessage(`{"id":"mv-1"}`)))
	entry, _, err = s.Lookup(ctx, "corr-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"mv-1"}`, string(entry.Result))
}

func TestIdempotencyDeleteFreesKey(t *testing.T) {
	s := NewIdempotencyStore(docstore.NewMemory())
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "corr-1", IdempotencyEntry{PayloadHash: "abc"}))
	require.NoError(t, s.Delete(ctx, "corr-1"))
	require.NoError(t, s.Insert(ctx, "corr-1", IdempotencyEntry{PayloadHash: "def"}))
}

func TestIdempotencyCleanupHonoursRetention(t *testing.T) {
	s := NewIdempotencyStore(docstore.NewMemory())
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "old", IdempotencyEntry{
		PayloadHash: "abc",
		CreatedAt:   time.Now().UTC().Add(-48 * time.Hour),
	}))
	require.NoError(t, s.Insert(ctx, "recent", IdempotencyEntry{PayloadHash: "def"}))

	require.NoError(t, s.Cleanup(ctx, 24*time.Hour))

	_, found, err := s.Lookup(ctx, "old")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = s.Lookup(ctx, "recent")
	require.NoError(t, err)
	require.True(t, found)
}
