package lots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewRepository(docstore.NewMemory()), nil)
}

func TestRegisterAndLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	lot, err := svc.Register(ctx, Lot{ID: "L-001", ProductRef: "GREEN-HUILA", ProductKind: KindRawMaterial})
	require.NoError(t, err)
	require.Equal(t, StatusActive, lot.Status)
	require.False(t, lot.ReceivedAt.IsZero())

	_, err = svc.Register(ctx, Lot{ID: "L-001", ProductRef: "GREEN-HUILA", ProductKind: KindRawMaterial})
	require.ErrorIs(t, err, ErrLotExists)

	require.NoError(t, svc.Block(ctx, "L-001"))
	got, err := svc.Get(ctx, "L-001")
	require.NoError(t, err)
	require.Equal(t, StatusBlocked, got.Status)

	require.NoError(t, svc.Close(ctx, "L-001"))
	require.ErrorIs(t, svc.Block(ctx, "L-001"), ErrLotClosed)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	_, err := svc.Register(ctx, Lot{ID: "L-old", ProductRef: "GREEN-HUILA", ProductKind: KindRawMaterial, ExpiresAt: &past})
	require.NoError(t, err)
	_, err = svc.Register(ctx, Lot{ID: "L-fresh", ProductRef: "GREEN-HUILA", ProductKind: KindRawMaterial, ExpiresAt: &future})
	require.NoError(t, err)
	_, err = svc.Register(ctx, Lot{ID: "L-open", ProductRef: "GREEN-HUILA", ProductKind: KindRawMaterial})
	require.NoError(t, err)

	blocked, err := svc.SweepExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, blocked)

	old, err := svc.Get(ctx, "L-old")
	require.NoError(t, err)
	require.Equal(t, StatusBlocked, old.Status)

	fresh, err := svc.Get(ctx, "L-fresh")
	require.NoError(t, err)
	require.Equal(t, StatusActive, fresh.Status)

	active, err := svc.ActiveByProduct(ctx, "GREEN-HUILA", KindRawMaterial)
	require.NoError(t, err)
	require.Len(t, active, 2)
}
