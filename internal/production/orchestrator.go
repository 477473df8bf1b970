package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/inventory"
	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
)

// EnginePort is the slice of the costing engine the orchestrator drives.
type EnginePort interface {
	RecordMovement(ctx context.Context, input inventory.MovementInput) (inventory.MovementRecord, error)
}

// ReservationPort settles holds placed for the manufacturing order.
type ReservationPort interface {
	Consume(ctx context.Context, id string) error
}

// ConsumptionLine is one BOM component draw for a manufacturing order.
type ConsumptionLine struct {
	ProductRef    string
	ProductKind   lots.ProductKind
	Quantity      decimal.Decimal
	LotRef        string
	WarehouseRef  string
	LocationRef   string
	ReservationID string
}

// ErrConsumptionAborted indicates a failed line whose siblings were rolled
// back by compensating receipts.
var ErrConsumptionAborted = errors.New("production: consumption aborted")

// Orchestrator drives multi-line material consumption against the costing
// engine, all lines or none.
type Orchestrator struct {
	engine       EnginePort
	reservations ReservationPort
	logger       *slog.Logger
}

// NewOrchestrator builds the orchestrator. reservations may be nil.
func NewOrchestrator(engine EnginePort, reservations ReservationPort, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{engine: engine, reservations: reservations, logger: logger}
}

// ConsumeForOrder issues every line for the order. When a line fails, the
// already-issued lines are reversed by receipts at their realized cost and
// ErrConsumptionAborted wraps the line failure. Line correlation ids derive
// from the order id, so a resubmitted order deduplicates in the engine.
func (o *Orchestrator) ConsumeForOrder(ctx context.Context, orderID string, lines []ConsumptionLine) ([]inventory.MovementRecord, error) {
	if orderID == "" {
		return nil, errors.New("production: order id required")
	}
	if len(lines) == 0 {
		return nil, errors.New("production: at least one consumption line required")
	}

	issued := make([]inventory.MovementRecord, 0, len(lines))
	for i, line := range lines {
		if line.ReservationID != "" && o.reservations != nil {
			if err := o.reservations.Consume(ctx, line.ReservationID); err != nil {
				o.rollback(ctx, orderID, issued)
				return nil, fmt.Errorf("%w: line %d reservation: %v", ErrConsumptionAborted, i, err)
			}
		}
		rec, err := o.engine.RecordMovement(ctx, inventory.MovementInput{
			Kind:          inventory.KindIssue,
			ProductRef:    line.ProductRef,
			ProductKind:   line.ProductKind,
			Quantity:      line.Quantity,
			LotRef:        line.LotRef,
			WarehouseFrom: line.WarehouseRef,
			LocationFrom:  line.LocationRef,
			CorrelationID: fmt.Sprintf("%s:line:%d", orderID, i),
			Note:          fmt.Sprintf("production order %s", orderID),
		})
		if err != nil {
			o.rollback(ctx, orderID, issued)
			return nil, fmt.Errorf("%w: line %d: %v", ErrConsumptionAborted, i, err)
		}
		issued = append(issued, rec)
	}
	return issued, nil
}

// ReceiveOutput posts the finished output of an order, priced at the total
// cost the consumption realized spread over the produced quantity.
func (o *Orchestrator) ReceiveOutput(ctx context.Context, orderID string, consumed []inventory.MovementRecord, productRef, lotRef, warehouseRef, locationRef string, qty decimal.Decimal) (inventory.MovementRecord, error) {
	if !qty.IsPositive() {
		return inventory.MovementRecord{}, inventory.ErrInvalidQuantity
	}
	totalCost := decimal.Zero
	for _, rec := range consumed {
		totalCost = totalCost.Add(rec.Quantity.Mul(rec.UnitCost))
	}
	return o.engine.RecordMovement(ctx, inventory.MovementInput{
		Kind:          inventory.KindReceipt,
		ProductRef:    productRef,
		ProductKind:   lots.KindFinishedGood,
		Quantity:      qty,
		UnitCost:      totalCost.Div(qty),
		LotRef:        lotRef,
		WarehouseTo:   warehouseRef,
		LocationTo:    locationRef,
		CostingMethod: inventory.WeightedAverage,
		CorrelationID: orderID + ":output",
		Note:          fmt.Sprintf("production order %s output", orderID),
	})
}

func (o *Orchestrator) rollback(ctx context.Context, orderID string, issued []inventory.MovementRecord) {
	for i := len(issued) - 1; i >= 0; i-- {
		rec := issued[i]
		_, err := o.engine.RecordMovement(ctx, inventory.MovementInput{
			Kind:          inventory.KindReceipt,
			ProductRef:    rec.ProductRef,
			ProductKind:   rec.ProductKind,
			Quantity:      rec.Quantity,
			UnitCost:      rec.UnitCost,
			LotRef:        rec.LotRef,
			WarehouseTo:   rec.WarehouseRef,
			LocationTo:    rec.LocationRef,
			CostingMethod: rec.CostingMethod,
			CorrelationID: fmt.Sprintf("%s:comp:%d", orderID, i),
			Note:          fmt.Sprintf("production order %s rollback", orderID),
		})
		if err != nil {
			// A failed reversal leaks stock; surface loudly for escalation.
			o.logger.Error("consumption rollback failed",
				slog.String("order", orderID),
				slog.String("movement", rec.ID),
				slog.Any("error", err))
		}
	}
}
