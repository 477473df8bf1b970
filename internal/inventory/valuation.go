package inventory

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/platform/cache"
)

const valuationCacheKey = "inventory:valuation"

// Valuator aggregates live ledger value grouped by product kind. It reads
// entry state directly; no journal replay is involved.
type Valuator struct {
	ledger Ledger
	cache  *cache.JSONCache
	group  singleflight.Group
}

// NewValuator builds the valuator. cache may be nil.
func NewValuator(ledger Ledger, jsonCache *cache.JSONCache) *Valuator {
	return &Valuator{ledger: ledger, cache: jsonCache}
}

// Valuation sums quantity times carrying cost across all entries, keyed by
// product kind. Concurrent cache misses collapse into one snapshot scan.
//
// The result is served from cache and may lag committed movements by up to
// the configured cache TTL. Callers that need a snapshot reflecting a
// movement they just posted must call Invalidate first.
func (v *Valuator) Valuation(ctx context.Context) (map[lots.ProductKind]decimal.Decimal, error) {
	result, err, _ := v.group.Do(valuationCacheKey, func() (interface{}, error) {
		totals := map[lots.ProductKind]decimal.Decimal{}
		err := v.cache.FetchJSON(ctx, valuationCacheKey, &totals, func(ctx context.Context) (interface{}, error) {
			return v.compute(ctx)
		})
		if err != nil {
			return nil, err
		}
		return totals, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[lots.ProductKind]decimal.Decimal), nil
}

// Invalidate drops the cached valuation, typically after posting movements.
func (v *Valuator) Invalidate(ctx context.Context) error {
	return v.cache.Invalidate(ctx, valuationCacheKey)
}

func (v *Valuator) compute(ctx context.Context) (map[lots.ProductKind]decimal.Decimal, error) {
	entries, err := v.ledger.EntriesSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	totals := map[lots.ProductKind]decimal.Decimal{
		lots.KindRawMaterial:  decimal.Zero,
		lots.KindFinishedGood: decimal.Zero,
	}
	for _, entry := range entries {
		totals[entry.Key.ProductKind] = totals[entry.Key.ProductKind].Add(entry.Value())
	}
	return totals, nil
}
