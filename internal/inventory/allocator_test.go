package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
)

type stubRegistry struct {
	byID   map[string]lots.Lot
	active []lots.Lot
}

func (s *stubRegistry) Get(_ context.Context, id string) (lots.Lot, error) {
	lot, ok := s.byID[id]
	if !ok {
		return lots.Lot{}, lots.ErrNotFound
	}
	return lot, nil
}

func (s *stubRegistry) ActiveByProduct(_ context.Context, _ string, _ lots.ProductKind) ([]lots.Lot, error) {
	return s.active, nil
}

type stubLedger struct {
	Ledger
	stock map[string]decimal.Decimal
}

func (s *stubLedger) QuantityByLot(_ context.Context, _ string, _ lots.ProductKind, lotRef string) (decimal.Decimal, error) {
	return s.stock[lotRef], nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func activeLot(id string, received time.Time, expires *time.Time) lots.Lot {
	return lots.Lot{ID: id, ProductRef: "GREEN-ETH", ProductKind: lots.KindRawMaterial,
		ReceivedAt: received, ExpiresAt: expires, Status: lots.StatusActive}
}

func TestSelectLotPrefersEarliestExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in5 := now.Add(5 * 24 * time.Hour)
	in10 := now.Add(10 * 24 * time.Hour)

	registry := &stubRegistry{active: []lots.Lot{
		activeLot("L-10D", now, &in10),
		activeLot("L-5D", now, &in5),
	}}
	ledger := &stubLedger{stock: map[string]decimal.Decimal{
		"L-5D": decimal.NewFromInt(3), "L-10D": decimal.NewFromInt(3),
	}}
	a := NewAllocator(registry, ledger, fixedClock(now))

	id, err := a.SelectLotForIssue(context.Background(), "GREEN-ETH", lots.KindRawMaterial, "")
	require.NoError(t, err)
	require.Equal(t, "L-5D", id)
}

func TestSelectLotSortsNilExpiryLast(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in10 := now.Add(10 * 24 * time.Hour)

	registry := &stubRegistry{active: []lots.Lot{
		activeLot("L-OPEN", now.Add(-48*time.Hour), nil),
		activeLot("L-DATED", now, &in10),
	}}
	ledger := &stubLedger{stock: map[string]decimal.Decimal{
		"L-OPEN": decimal.NewFromInt(1), "L-DATED": decimal.NewFromInt(1),
	}}
	a := NewAllocator(registry, ledger, fixedClock(now))

	id, err := a.SelectLotForIssue(context.Background(), "GREEN-ETH", lots.KindRawMaterial, "")
	require.NoError(t, err)
	require.Equal(t, "L-DATED", id, "dated lot wins over undated regardless of age")
}

func TestSelectLotSkipsEmptyAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gone := now.Add(-time.Hour)
	in5 := now.Add(5 * 24 * time.Hour)

	registry := &stubRegistry{active: []lots.Lot{
		activeLot("L-EXPIRED", now.Add(-72*time.Hour), &gone),
		activeLot("L-EMPTY", now, &in5),
		activeLot("L-STOCKED", now, &in5),
	}}
	ledger := &stubLedger{stock: map[string]decimal.Decimal{
		"L-EXPIRED": decimal.NewFromInt(9),
		"L-EMPTY":   decimal.Zero,
		"L-STOCKED": decimal.NewFromInt(2),
	}}
	a := NewAllocator(registry, ledger, fixedClock(now))

	id, err := a.SelectLotForIssue(context.Background(), "GREEN-ETH", lots.KindRawMaterial, "")
	require.NoError(t, err)
	require.Equal(t, "L-STOCKED", id)
}

func TestSelectLotTiebreaksOnReceivedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in5 := now.Add(5 * 24 * time.Hour)

	registry := &stubRegistry{active: []lots.Lot{
		activeLot("L-NEW", now, &in5),
		activeLot("L-OLD", now.Add(-24*time.Hour), &in5),
	}}
	ledger := &stubLedger{stock: map[string]decimal.Decimal{
		"L-NEW": decimal.NewFromInt(1), "L-OLD": decimal.NewFromInt(1),
	}}
	a := NewAllocator(registry, ledger, fixedClock(now))

	id, err := a.SelectLotForIssue(context.Background(), "GREEN-ETH", lots.KindRawMaterial, "")
	require.NoError(t, err)
	require.Equal(t, "L-OLD", id)
}

func TestSelectLotNoCandidates(t *testing.T) {
	a := NewAllocator(&stubRegistry{}, &stubLedger{}, nil)
	_, err := a.SelectLotForIssue(context.Background(), "GREEN-ETH", lots.KindRawMaterial, "")
	require.ErrorIs(t, err, ErrNoLotAvailable)
}

func TestValidateLotForIssue(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gone := now.Add(-time.Minute)
	blocked := activeLot("L-B", now, nil)
	blocked.Status = lots.StatusBlocked

	registry := &stubRegistry{byID: map[string]lots.Lot{
		"L-OK":      activeLot("L-OK", now, nil),
		"L-B":       blocked,
		"L-EXPIRED": activeLot("L-EXPIRED", now, &gone),
	}}
	a := NewAllocator(registry, &stubLedger{}, fixedClock(now))

	require.NoError(t, a.ValidateLotForIssue(context.Background(), "L-OK"))
	require.ErrorIs(t, a.ValidateLotForIssue(context.Background(), "L-B"), ErrLotNotActive)
	require.ErrorIs(t, a.ValidateLotForIssue(context.Background(), "L-EXPIRED"), ErrLotExpired)
	require.ErrorIs(t, a.ValidateLotForIssue(context.Background(), "L-MISSING"), lots.ErrNotFound)
}
