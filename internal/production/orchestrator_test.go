package production

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arabica-erp/arabica-erp/internal/inventory"
	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
)

type fakeEngine struct {
	inputs  []inventory.MovementInput
	failOn  map[string]error
	nextSeq int
}

func (f *fakeEngine) RecordMovement(_ context.Context, input inventory.MovementInput) (inventory.MovementRecord, error) {
	f.inputs = append(f.inputs, input)
	if err, ok := f.failOn[input.CorrelationID]; ok {
		return inventory.MovementRecord{}, err
	}
	f.nextSeq++
	unitCost := input.UnitCost
	if input.Kind == inventory.KindIssue {
		unitCost = decimal.NewFromInt(5)
	}
	return inventory.MovementRecord{
		ID:           fmt.Sprintf("mv-%d", f.nextSeq),
		Kind:         input.Kind,
		ProductRef:   input.ProductRef,
		ProductKind:  input.ProductKind,
		LotRef:       input.LotRef,
		WarehouseRef: input.WarehouseFrom + input.WarehouseTo,
		LocationRef:  input.LocationFrom + input.LocationTo,
		Quantity:     input.Quantity,
		UnitCost:     unitCost,
	}, nil
}

type fakeReservations struct {
	consumed []string
	err      error
}

func (f *fakeReservations) Consume(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.consumed = append(f.consumed, id)
	return nil
}

func twoLines() []ConsumptionLine {
	return []ConsumptionLine{
		{ProductRef: "GREEN-ETH", ProductKind: lots.KindRawMaterial, Quantity: decimal.NewFromInt(10), LotRef: "L1", WarehouseRef: "WH1", LocationRef: "RAW"},
		{ProductRef: "BAG-250", ProductKind: lots.KindRawMaterial, Quantity: decimal.NewFromInt(40), WarehouseRef: "WH1", LocationRef: "PKG"},
	}
}

func TestConsumeForOrderIssuesEveryLine(t *testing.T) {
	eng := &fakeEngine{}
	orch := NewOrchestrator(eng, nil, nil)

	issued, err := orch.ConsumeForOrder(context.Background(), "MO-7", twoLines())
	require.NoError(t, err)
	require.Len(t, issued, 2)
	require.Equal(t, "MO-7:line:0", eng.inputs[0].CorrelationID)
	require.Equal(t, "MO-7:line:1", eng.inputs[1].CorrelationID)
	require.Equal(t, inventory.KindIssue, eng.inputs[0].Kind)
}

func TestConsumeForOrderRollsBackOnLineFailure(t *testing.T) {
	eng := &fakeEngine{failOn: map[string]error{
		"MO-7:line:1": inventory.ErrInsufficientStock,
	}}
	orch := NewOrchestrator(eng, nil, nil)

	_, err := orch.ConsumeForOrder(context.Background(), "MO-7", twoLines())
	require.ErrorIs(t, err, ErrConsumptionAborted)

	// line 0 issue, line 1 failed issue, then compensating receipt for line 0
	require.Len(t, eng.inputs, 3)
	comp := eng.inputs[2]
	require.Equal(t, inventory.KindReceipt, comp.Kind)
	require.Equal(t, "MO-7:comp:0", comp.CorrelationID)
	require.Equal(t, "GREEN-ETH", comp.ProductRef)
	require.True(t, comp.UnitCost.Equal(decimal.NewFromInt(5)), "reversal priced at realized cost")
}

func TestConsumeForOrderSettlesReservations(t *testing.T) {
	eng := &fakeEngine{}
	rsv := &fakeReservations{}
	orch := NewOrchestrator(eng, rsv, nil)

	lines := twoLines()
	lines[0].ReservationID = "rsv-1"
	_, err := orch.ConsumeForOrder(context.Background(), "MO-8", lines)
	require.NoError(t, err)
	require.Equal(t, []string{"rsv-1"}, rsv.consumed)
}

func TestConsumeForOrderAbortsOnReservationFailure(t *testing.T) {
	eng := &fakeEngine{}
	rsv := &fakeReservations{err: errors.New("already consumed")}
	orch := NewOrchestrator(eng, rsv, nil)

	lines := twoLines()
	lines[1].ReservationID = "rsv-2"
	_, err := orch.ConsumeForOrder(context.Background(), "MO-9", lines)
	require.ErrorIs(t, err, ErrConsumptionAborted)

	// line 0 and the failing line's sibling reversal only; line 1 never issued
	require.Len(t, eng.inputs, 2)
	require.Equal(t, inventory.KindReceipt, eng.inputs[1].Kind)
}

func TestReceiveOutputPricedAtConsumedCost(t *testing.T) {
	eng := &fakeEngine{}
	orch := NewOrchestrator(eng, nil, nil)

	consumed := []inventory.MovementRecord{
		{Quantity: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(6)},
		{Quantity: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(8)},
	}
	rec, err := orch.ReceiveOutput(context.Background(), "MO-7", consumed,
		"ROAST-ETH", "RO-1", "WH1", "FG", decimal.NewFromInt(8))
	require.NoError(t, err)
	// (10*6 + 5*8) / 8 = 12.5
	require.True(t, rec.UnitCost.Equal(decimal.RequireFromString("12.5")))
	require.Equal(t, "MO-7:output", eng.inputs[0].CorrelationID)
	require.Equal(t, lots.KindFinishedGood, eng.inputs[0].ProductKind)
}

func TestReceiveOutputRejectsNonPositiveQuantity(t *testing.T) {
	orch := NewOrchestrator(&fakeEngine{}, nil, nil)
	_, err := orch.ReceiveOutput(context.Background(), "MO-7", nil, "ROAST", "", "WH1", "FG", decimal.Zero)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}
