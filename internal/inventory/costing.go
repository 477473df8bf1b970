package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// applyReceipt folds an inbound quantity at unitCost into the entry. The
// kardex reconstructor folds journal records through this same function, so
// any change here changes replay too.
func applyReceipt(entry StockLedgerEntry, qty, unitCost decimal.Decimal, at time.Time) StockLedgerEntry {
	switch entry.CostingMethod {
	case FIFO:
		entry.CostLayers = append(entry.CostLayers, CostLayer{
			QuantityRemaining: qty,
			UnitCost:          unitCost,
			ReceivedAt:        at,
		})
	default:
		newQty := entry.Quantity.Add(qty)
		if newQty.IsZero() {
			entry.AverageCost = decimal.Zero
		} else {
			total := entry.Quantity.Mul(entry.AverageCost).Add(qty.Mul(unitCost))
			entry.AverageCost = total.Div(newQty)
		}
	}
	entry.Quantity = entry.Quantity.Add(qty)
	entry.UpdatedAt = at
	return entry
}

// applyIssue removes qty from the entry and reports the realized unit cost
// of the issue. For FIFO the oldest layers are drained first and each drawn
// slice is captured; fully drained layers are dropped.
func applyIssue(entry StockLedgerEntry, qty decimal.Decimal, at time.Time) (StockLedgerEntry, decimal.Decimal, []ConsumedLayer, error) {
	if entry.Quantity.LessThan(qty) {
		return entry, decimal.Zero, nil, ErrInsufficientStock
	}

	if entry.CostingMethod != FIFO {
		entry.Quantity = entry.Quantity.Sub(qty)
		entry.UpdatedAt = at
		return entry, entry.AverageCost, nil, nil
	}

	remaining := qty
	totalCost := decimal.Zero
	var consumed []ConsumedLayer
	layers := make([]CostLayer, 0, len(entry.CostLayers))
	for _, layer := range entry.CostLayers {
		if remaining.IsZero() {
			layers = append(layers, layer)
			continue
		}
		drawn := decimal.Min(remaining, layer.QuantityRemaining)
		consumed = append(consumed, ConsumedLayer{Quantity: drawn, UnitCost: layer.UnitCost})
		totalCost = totalCost.Add(drawn.Mul(layer.UnitCost))
		remaining = remaining.Sub(drawn)
		layer.QuantityRemaining = layer.QuantityRemaining.Sub(drawn)
		if layer.QuantityRemaining.IsPositive() {
			layers = append(layers, layer)
		}
	}
	if remaining.IsPositive() {
		// Layer bookkeeping drifted from Quantity; refuse rather than clamp.
		return entry, decimal.Zero, nil, ErrInsufficientStock
	}
	entry.CostLayers = layers
	entry.Quantity = entry.Quantity.Sub(qty)
	entry.UpdatedAt = at
	realized := totalCost.Div(qty)
	return entry, realized, consumed, nil
}
