package reservations

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

type fixedStock struct {
	qty decimal.Decimal
}

func (s fixedStock) QuantityAt(context.Context, string, lots.ProductKind, string, string) (decimal.Decimal, error) {
	return s.qty, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testKey() PromiseKey {
	return PromiseKey{
		ProductRef:   "ROAST-ETH",
		ProductKind:  lots.KindFinishedGood,
		WarehouseRef: "WH1",
		LocationRef:  "FG",
	}
}

func newService(t *testing.T, physical string, clock func() time.Time) *Service {
	t.Helper()
	repo := NewRepository(docstore.NewMemory())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, fixedStock{qty: d(physical)}, nil, logger, clock)
}

func TestAvailableToPromiseSubtractsActiveHolds(t *testing.T) {
	svc := newService(t, "20", nil)
	ctx := context.Background()

	atp, err := svc.AvailableToPromise(ctx, testKey())
	require.NoError(t, err)
	require.True(t, atp.Equal(d("20")))

	_, err = svc.CreateReservation(ctx, testKey(), d("15"), "so-1")
	require.NoError(t, err)

	atp, err = svc.AvailableToPromise(ctx, testKey())
	require.NoError(t, err)
	require.True(t, atp.Equal(d("5")))
}

func TestCreateReservationRejectsOverCommit(t *testing.T) {
	svc := newService(t, "20", nil)
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, testKey(), d("15"), "so-1")
	require.NoError(t, err)

	_, err = svc.CreateReservation(ctx, testKey(), d("6"), "so-2")
	require.ErrorIs(t, err, ErrInsufficientAvailability)

	// boundary: exactly the remaining availability passes
	_, err = svc.CreateReservation(ctx, testKey(), d("5"), "so-3")
	require.NoError(t, err)
}

func TestCreateReservationRejectsNonPositiveQuantity(t *testing.T) {
	svc := newService(t, "20", nil)
	_, err := svc.CreateReservation(context.Background(), testKey(), decimal.Zero, "so-1")
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReleaseRestoresAvailability(t *testing.T) {
	svc := newService(t, "20", nil)
	ctx := context.Background()

	rsv, err := svc.CreateReservation(ctx, testKey(), d("15"), "so-1")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, rsv.ID))

	atp, err := svc.AvailableToPromise(ctx, testKey())
	require.NoError(t, err)
	require.True(t, atp.Equal(d("20")))

	// releasing again is a no-op
	require.NoError(t, svc.Release(ctx, rsv.ID))
}

func TestConsumeIsTerminal(t *testing.T) {
	svc := newService(t, "20", nil)
	ctx := context.Background()

	rsv, err := svc.CreateReservation(ctx, testKey(), d("10"), "so-1")
	require.NoError(t, err)
	require.NoError(t, svc.Consume(ctx, rsv.ID))

	require.ErrorIs(t, svc.Consume(ctx, rsv.ID), ErrAlreadyConsumed)

	// consumed holds no longer count against availability
	atp, err := svc.AvailableToPromise(ctx, testKey())
	require.NoError(t, err)
	require.True(t, atp.Equal(d("20")))
}

func TestConsumeReleasedReservationRejected(t *testing.T) {
	svc := newService(t, "20", nil)
	ctx := context.Background()

	rsv, err := svc.CreateReservation(ctx, testKey(), d("10"), "so-1")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, rsv.ID))

	err = svc.Consume(ctx, rsv.ID)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyConsumed)
}

func TestConsumeUnknownReservation(t *testing.T) {
	svc := newService(t, "20", nil)
	require.ErrorIs(t, svc.Consume(context.Background(), "missing"), ErrNotFound)
}

func TestExpireStaleReleasesOldActiveHolds(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := newService(t, "100", clock)
	ctx := context.Background()

	stale, err := svc.CreateReservation(ctx, testKey(), d("5"), "so-old")
	require.NoError(t, err)

	now = now.Add(10 * 24 * time.Hour)
	fresh, err := svc.CreateReservation(ctx, testKey(), d("5"), "so-new")
	require.NoError(t, err)

	released, err := svc.ExpireStale(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, released)

	got, err := svc.repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, StateReleased, got.State)

	got, err = svc.repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, StateActive, got.State)
}
