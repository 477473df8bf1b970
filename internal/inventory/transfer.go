package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Transfer moves stock between locations as an Issue at the source followed
// by a Receipt at the destination priced at the cost the issue realized.
// Both halves share a correlation id. When the destination half fails the
// source half is compensated by a reversing receipt; an un-compensated half
// transfer is a stock leak, so the compensation is retried and escalated as
// ErrCompensationFailed when it cannot be committed.
func (e *Engine) Transfer(ctx context.Context, input TransferInput) (MovementRecord, MovementRecord, error) {
	if input.WarehouseFrom == input.WarehouseTo && input.LocationFrom == input.LocationTo {
		return MovementRecord{}, MovementRecord{}, errors.New("inventory: source and destination must differ")
	}
	corr := input.CorrelationID
	if corr == "" {
		corr = uuid.NewString()
	}

	out, err := e.record(ctx, MovementInput{
		Kind:          KindTransferOut,
		ProductRef:    input.ProductRef,
		ProductKind:   input.ProductKind,
		Quantity:      input.Quantity,
		LotRef:        input.LotRef,
		WarehouseFrom: input.WarehouseFrom,
		LocationFrom:  input.LocationFrom,
		CorrelationID: corr,
		Note:          transferNote("to", input.WarehouseTo, input.LocationTo, input.Note),
		ActorID:       input.ActorID,
	}, corr+":out")
	if err != nil {
		return MovementRecord{}, MovementRecord{}, err
	}

	in, err := e.record(ctx, MovementInput{
		Kind:          KindTransferIn,
		ProductRef:    input.ProductRef,
		ProductKind:   input.ProductKind,
		Quantity:      input.Quantity,
		UnitCost:      out.UnitCost,
		LotRef:        out.LotRef,
		WarehouseTo:   input.WarehouseTo,
		LocationTo:    input.LocationTo,
		CostingMethod: out.CostingMethod,
		CorrelationID: corr,
		Note:          transferNote("from", input.WarehouseFrom, input.LocationFrom, input.Note),
		ActorID:       input.ActorID,
	}, corr+":in")
	if err == nil {
		return out, in, nil
	}

	compErr := e.compensateTransfer(ctx, input, out, corr)
	if compErr != nil {
		return out, MovementRecord{}, fmt.Errorf("%w: destination receipt: %v, compensation: %v", ErrCompensationFailed, err, compErr)
	}
	return MovementRecord{}, MovementRecord{}, fmt.Errorf("inventory: transfer destination receipt failed: %w", err)
}

func (e *Engine) compensateTransfer(ctx context.Context, input TransferInput, out MovementRecord, corr string) error {
	var lastErr error
	for attempt := 0; attempt < e.casRetries; attempt++ {
		_, err := e.record(ctx, MovementInput{
			Kind:          KindReceipt,
			ProductRef:    input.ProductRef,
			ProductKind:   input.ProductKind,
			Quantity:      input.Quantity,
			UnitCost:      out.UnitCost,
			LotRef:        out.LotRef,
			WarehouseTo:   input.WarehouseFrom,
			LocationTo:    input.LocationFrom,
			CostingMethod: out.CostingMethod,
			CorrelationID: corr,
			Note:          "transfer compensation",
			ActorID:       input.ActorID,
		}, corr+":comp")
		if err == nil {
			return nil
		}
		lastErr = err
	}
	e.logger.Error("transfer compensation exhausted retries",
		slog.String("correlation_id", corr),
		slog.String("product", input.ProductRef),
		slog.Any("error", lastErr))
	return lastErr
}

func transferNote(direction, warehouse, location, note string) string {
	base := fmt.Sprintf("transfer %s %s/%s", direction, warehouse, location)
	if note == "" {
		return base
	}
	return base + ": " + note
}
