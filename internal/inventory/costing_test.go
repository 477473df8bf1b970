package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWeightedAverageReceiptBlendsCost(t *testing.T) {
	now := time.Now().UTC()
	entry := StockLedgerEntry{CostingMethod: WeightedAverage}

	entry = applyReceipt(entry, d("100"), d("10"), now)
	require.True(t, entry.AverageCost.Equal(d("10")))

	entry = applyReceipt(entry, d("50"), d("20"), now)
	require.True(t, entry.Quantity.Equal(d("150")))
	// (100*10 + 50*20) / 150
	require.True(t, entry.AverageCost.Equal(d("2000").Div(d("150"))))
}

func TestWeightedAverageIssueKeepsCost(t *testing.T) {
	now := time.Now().UTC()
	entry := StockLedgerEntry{CostingMethod: WeightedAverage}
	entry = applyReceipt(entry, d("50"), d("20"), now)

	entry, realized, consumed, err := applyIssue(entry, d("10"), now)
	require.NoError(t, err)
	require.True(t, realized.Equal(d("20")))
	require.Nil(t, consumed)
	require.True(t, entry.Quantity.Equal(d("40")))
	require.True(t, entry.AverageCost.Equal(d("20")))
}

func TestFIFOIssueDrainsOldestLayersFirst(t *testing.T) {
	now := time.Now().UTC()
	entry := StockLedgerEntry{CostingMethod: FIFO}
	entry = applyReceipt(entry, d("10"), d("5"), now)
	entry = applyReceipt(entry, d("15"), d("8"), now.Add(time.Hour))

	entry, realized, consumed, err := applyIssue(entry, d("12"), now.Add(2*time.Hour))
	require.NoError(t, err)
	// (10*5 + 2*8) / 12 = 5.5
	require.True(t, realized.Equal(d("5.5")))
	require.Len(t, consumed, 2)
	require.True(t, consumed[0].Quantity.Equal(d("10")))
	require.True(t, consumed[0].UnitCost.Equal(d("5")))
	require.True(t, consumed[1].Quantity.Equal(d("2")))
	require.True(t, consumed[1].UnitCost.Equal(d("8")))

	require.Len(t, entry.CostLayers, 1)
	require.True(t, entry.CostLayers[0].QuantityRemaining.Equal(d("13")))
	require.True(t, entry.CostLayers[0].UnitCost.Equal(d("8")))
	require.True(t, entry.Quantity.Equal(d("13")))
}

func TestFIFOIssueExactLayerBoundaryDropsLayer(t *testing.T) {
	now := time.Now().UTC()
	entry := StockLedgerEntry{CostingMethod: FIFO}
	entry = applyReceipt(entry, d("10"), d("5"), now)
	entry = applyReceipt(entry, d("15"), d("8"), now)

	entry, realized, _, err := applyIssue(entry, d("10"), now)
	require.NoError(t, err)
	require.True(t, realized.Equal(d("5")))
	require.Len(t, entry.CostLayers, 1)
}

func TestIssueBeyondStockIsRejected(t *testing.T) {
	now := time.Now().UTC()

	wa := StockLedgerEntry{CostingMethod: WeightedAverage}
	wa = applyReceipt(wa, d("5"), d("3"), now)
	_, _, _, err := applyIssue(wa, d("6"), now)
	require.ErrorIs(t, err, ErrInsufficientStock)

	fifo := StockLedgerEntry{CostingMethod: FIFO}
	fifo = applyReceipt(fifo, d("5"), d("3"), now)
	_, _, _, err = applyIssue(fifo, d("6"), now)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestFIFOLayerDriftIsRefused(t *testing.T) {
	now := time.Now().UTC()
	entry := StockLedgerEntry{
		CostingMethod: FIFO,
		Quantity:      d("5"),
		CostLayers:    []CostLayer{{QuantityRemaining: d("3"), UnitCost: d("2")}},
	}
	_, _, _, err := applyIssue(entry, d("5"), now)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestEntryValueAndUnitCost(t *testing.T) {
	now := time.Now().UTC()

	wa := StockLedgerEntry{CostingMethod: WeightedAverage}
	wa = applyReceipt(wa, d("4"), d("2.5"), now)
	require.True(t, wa.Value().Equal(d("10")))
	require.True(t, wa.UnitCost().Equal(d("2.5")))

	fifo := StockLedgerEntry{CostingMethod: FIFO}
	fifo = applyReceipt(fifo, d("2"), d("3"), now)
	fifo = applyReceipt(fifo, d("2"), d("5"), now)
	require.True(t, fifo.Value().Equal(d("16")))
	require.True(t, fifo.UnitCost().Equal(d("4")))

	empty := StockLedgerEntry{CostingMethod: FIFO}
	require.True(t, empty.UnitCost().IsZero())
}
