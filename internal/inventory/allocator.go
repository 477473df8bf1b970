package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
)

// ErrNoLotAvailable indicates FEFO selection found no candidate with stock.
var ErrNoLotAvailable = errors.New("inventory: no lot available")

// LotRegistry is the slice of the lot service the allocator reads.
type LotRegistry interface {
	Get(ctx context.Context, id string) (lots.Lot, error)
	ActiveByProduct(ctx context.Context, productRef string, kind lots.ProductKind) ([]lots.Lot, error)
}

// Allocator centralises FEFO policy: issues that do not name a lot draw from
// the first-expiring Active lot that still holds stock. Selection is
// advisory; the deduction happens under the stock key lock in the engine.
type Allocator struct {
	registry LotRegistry
	ledger   Ledger
	clock    func() time.Time
}

// NewAllocator builds the FEFO allocator.
func NewAllocator(registry LotRegistry, ledger Ledger, clock func() time.Time) *Allocator {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Allocator{registry: registry, ledger: ledger, clock: clock}
}

// SelectLotForIssue returns the best candidate lot for an issue, ordering
// Active lots by expiresAt ascending (nulls last) then receivedAt ascending,
// and skipping lots with no stock anywhere. excludeLot is left out of the
// candidate set.
func (a *Allocator) SelectLotForIssue(ctx context.Context, productRef string, kind lots.ProductKind, excludeLot string) (string, error) {
	candidates, err := a.registry.ActiveByProduct(ctx, productRef, kind)
	if err != nil {
		return "", err
	}
	now := a.clock()
	eligible := candidates[:0]
	for _, lot := range candidates {
		if lot.ID == excludeLot || lot.Expired(now) {
			continue
		}
		eligible = append(eligible, lot)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		ei, ej := eligible[i].ExpiresAt, eligible[j].ExpiresAt
		switch {
		case ei == nil && ej == nil:
			return eligible[i].ReceivedAt.Before(eligible[j].ReceivedAt)
		case ei == nil:
			return false
		case ej == nil:
			return true
		case ei.Equal(*ej):
			return eligible[i].ReceivedAt.Before(eligible[j].ReceivedAt)
		default:
			return ei.Before(*ej)
		}
	})
	for _, lot := range eligible {
		qty, err := a.ledger.QuantityByLot(ctx, productRef, kind, lot.ID)
		if err != nil {
			return "", err
		}
		if qty.IsPositive() {
			return lot.ID, nil
		}
	}
	return "", ErrNoLotAvailable
}

// ValidateLotForIssue checks an explicitly named lot: expired lots are
// rejected even before the sweep flips them, non-Active lots are rejected
// outright.
func (a *Allocator) ValidateLotForIssue(ctx context.Context, lotRef string) error {
	lot, err := a.registry.Get(ctx, lotRef)
	if err != nil {
		return err
	}
	if lot.Expired(a.clock()) {
		return ErrLotExpired
	}
	if lot.Status != lots.StatusActive {
		return ErrLotNotActive
	}
	return nil
}
