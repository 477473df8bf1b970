package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/masterdata/warehouses"
	"github.com/arabica-erp/arabica-erp/internal/shared"
)

// LotService is the slice of the lot registry the engine depends on.
type LotService interface {
	LotRegistry
	Register(ctx context.Context, lot lots.Lot) (lots.Lot, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MovementInput describes a proposed movement. Warehouse/location From is
// used by outbound kinds, To by inbound kinds; transfers use both via
// Transfer. CostingMethod is only consulted when the ledger entry does not
// exist yet.
type MovementInput struct {
	Kind MovementKind `json:"kind"`
	// 0x7C is "|", the stock key separator; refs containing it would alias
	// another key when the ledger is scanned by prefix.
	ProductRef    string           `json:"product_ref" validate:"required,excludesall=0x7C"`
	ProductKind   lots.ProductKind `json:"product_kind" validate:"required,oneof=RAW_MATERIAL FINISHED_GOOD"`
	Quantity      decimal.Decimal  `json:"quantity"`
	UnitCost      decimal.Decimal  `json:"unit_cost"`
	LotRef        string           `json:"lot_ref,omitempty" validate:"excludesall=0x7C"`
	WarehouseFrom string           `json:"warehouse_from,omitempty" validate:"excludesall=0x7C"`
	LocationFrom  string           `json:"location_from,omitempty" validate:"excludesall=0x7C"`
	WarehouseTo   string           `json:"warehouse_to,omitempty" validate:"excludesall=0x7C"`
	LocationTo    string           `json:"location_to,omitempty" validate:"excludesall=0x7C"`
	CostingMethod CostingMethod    `json:"costing_method,omitempty"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Note          string           `json:"note,omitempty"`
	ActorID       int64            `json:"actor_id,omitempty"`
}

// TransferInput describes a transfer between two locations, decomposed into
// a TransferOut at the source and a TransferIn at the destination sharing a
// correlation id.
type TransferInput struct {
	ProductRef    string
	ProductKind   lots.ProductKind
	LotRef        string
	Quantity      decimal.Decimal
	WarehouseFrom string
	LocationFrom  string
	WarehouseTo   string
	LocationTo    string
	CorrelationID string
	Note          string
	ActorID       int64
}

// EngineConfig groups optional engine settings.
type EngineConfig struct {
	// CASMaxRetries bounds the compare-and-swap retry loop against
	// cross-process writers. Defaults to 3.
	CASMaxRetries int
	// Clock supplies commit timestamps. Defaults to time.Now in UTC.
	Clock func() time.Time
}

// Engine owns all writes to stock ledger entries and the movement journal.
// An explicitly constructed instance carries its dependencies; there is no
// process-wide singleton.
type Engine struct {
	ledger     Ledger
	lots       LotService
	allocator  *Allocator
	dims       *warehouses.Service
	locks      *shared.KeyMutex
	idem       *shared.IdempotencyStore
	audit      AuditPort
	validate   *validator.Validate
	logger     *slog.Logger
	clock      func() time.Time
	casRetries int
}

// NewEngine builds the costing engine. dims, idem and audit may be nil.
func NewEngine(ledger Ledger, lotSvc LotService, allocator *Allocator, dims *warehouses.Service, locks *shared.KeyMutex, idem *shared.IdempotencyStore, audit AuditPort, logger *slog.Logger, cfg EngineConfig) *Engine {
	if locks == nil {
		locks = shared.NewKeyMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	retries := cfg.CASMaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Engine{
		ledger:     ledger,
		lots:       lotSvc,
		allocator:  allocator,
		dims:       dims,
		locks:      locks,
		idem:       idem,
		audit:      audit,
		validate:   validator.New(),
		logger:     logger,
		clock:      clock,
		casRetries: retries,
	}
}

// RecordMovement validates, costs and commits a single movement, returning
// the journal record including the entry's post-movement balance. Transfer
// halves are not accepted here; use Transfer.
func (e *Engine) RecordMovement(ctx context.Context, input MovementInput) (MovementRecord, error) {
	if input.Kind == KindTransferOut || input.Kind == KindTransferIn {
		return MovementRecord{}, errors.New("inventory: transfer halves are recorded via Transfer")
	}
	switch input.Kind {
	case KindReceipt, KindIssue, KindPositiveAdjustment, KindNegativeAdjustment:
	default:
		return MovementRecord{}, fmt.Errorf("inventory: unknown movement kind %q", input.Kind)
	}
	return e.record(ctx, input, input.CorrelationID)
}

func (e *Engine) record(ctx context.Context, input MovementInput, idemKey string) (MovementRecord, error) {
	if err := e.validate.Struct(input); err != nil {
		return MovementRecord{}, fmt.Errorf("inventory: invalid movement: %w", err)
	}
	if !input.Quantity.IsPositive() {
		return MovementRecord{}, ErrInvalidQuantity
	}
	inbound := input.Kind.Inbound()
	if inbound && input.UnitCost.IsNegative() {
		return MovementRecord{}, ErrInvalidUnitCost
	}

	warehouseRef, locationRef := input.WarehouseFrom, input.LocationFrom
	if inbound {
		warehouseRef, locationRef = input.WarehouseTo, input.LocationTo
	}
	if warehouseRef == "" || locationRef == "" {
		return MovementRecord{}, errors.New("inventory: warehouse and location required")
	}
	if e.dims != nil {
		if err := e.dims.Exists(ctx, warehouseRef, locationRef); err != nil {
			return MovementRecord{}, fmt.Errorf("inventory: unknown dimension: %w", err)
		}
	}

	lotRef, err := e.resolveLot(ctx, input, inbound)
	if err != nil {
		return MovementRecord{}, err
	}

	key := StockKey{
		ProductRef:   input.ProductRef,
		ProductKind:  input.ProductKind,
		LotRef:       lotRef,
		WarehouseRef: warehouseRef,
		LocationRef:  locationRef,
	}

	lockKey := key.String()
	e.locks.Lock(lockKey)
	defer e.locks.Unlock(lockKey)

	if err := ctx.Err(); err != nil {
		return MovementRecord{}, err
	}

	payloadHash := hashInput(input)
	if idemKey != "" && e.idem != nil {
		entry, found, err := e.idem.Lookup(ctx, idemKey)
		if err != nil {
			return MovementRecord{}, storageErr(err)
		}
		if found {
			if entry.PayloadHash != payloadHash || len(entry.Result) == 0 {
				return MovementRecord{}, ErrDuplicateMovement
			}
			var rec MovementRecord
			if err := json.Unmarshal(entry.Result, &rec); err != nil {
				return MovementRecord{}, fmt.Errorf("inventory: decode stored movement: %w", err)
			}
			return rec, nil
		}
		if err := e.idem.Insert(ctx, idemKey, shared.IdempotencyEntry{PayloadHash: payloadHash}); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return MovementRecord{}, ErrDuplicateMovement
			}
			return MovementRecord{}, storageErr(err)
		}
	}

	rec, err := e.commit(ctx, key, input)
	if err != nil {
		if idemKey != "" && e.idem != nil {
			_ = e.idem.Delete(ctx, idemKey)
		}
		return MovementRecord{}, err
	}
	if idemKey != "" && e.idem != nil {
		result, marshalErr := json.Marshal(rec)
		if marshalErr == nil {
			if err := e.idem.Complete(ctx, idemKey, result); err != nil {
				e.logger.Warn("idempotency completion failed",
					slog.String("key", idemKey), slog.Any("error", err))
			}
		}
	}

	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", rec.Kind),
			Entity:   "stock_movement",
			EntityID: rec.ID,
			Meta: map[string]any{
				"stock_key": key.String(),
				"quantity":  rec.Quantity.String(),
				"unit_cost": rec.UnitCost.String(),
				"note":      rec.Note,
			},
		})
	}
	e.logger.Info("movement recorded",
		slog.String("id", rec.ID),
		slog.String("kind", string(rec.Kind)),
		slog.String("stock_key", key.String()),
		slog.String("quantity", rec.Quantity.String()),
		slog.String("balance", rec.BalanceQuantity.String()))
	return rec, nil
}

// commit runs the load-apply-store sequence with a bounded CAS retry. The
// in-process key lock already serialises local callers; the retry covers
// writers in other processes racing on the store version.
func (e *Engine) commit(ctx context.Context, key StockKey, input MovementInput) (MovementRecord, error) {
	var lastErr error
	for attempt := 0; attempt < e.casRetries; attempt++ {
		entry, version, err := e.ledger.GetEntry(ctx, key)
		if errors.Is(err, ErrEntryNotFound) {
			if !input.CostingMethod.Valid() {
				return MovementRecord{}, errors.New("inventory: costing method required for new ledger entry")
			}
			entry = StockLedgerEntry{Key: key, CostingMethod: input.CostingMethod}
			version = 0
		} else if err != nil {
			return MovementRecord{}, err
		} else if input.CostingMethod != "" && input.CostingMethod != entry.CostingMethod {
			return MovementRecord{}, ErrCostingMethodConflict
		}

		now := e.clock()
		rec := MovementRecord{
			ID:            uuid.NewString(),
			CorrelationID: input.CorrelationID,
			Kind:          input.Kind,
			ProductRef:    key.ProductRef,
			ProductKind:   key.ProductKind,
			LotRef:        key.LotRef,
			WarehouseRef:  key.WarehouseRef,
			LocationRef:   key.LocationRef,
			Quantity:      input.Quantity,
			CostingMethod: entry.CostingMethod,
			At:            now,
			Note:          input.Note,
		}

		if input.Kind.Inbound() {
			entry = applyReceipt(entry, input.Quantity, input.UnitCost, now)
			rec.UnitCost = input.UnitCost
		} else {
			var realized decimal.Decimal
			var consumed []ConsumedLayer
			entry, realized, consumed, err = applyIssue(entry, input.Quantity, now)
			if err != nil {
				return MovementRecord{}, err
			}
			rec.UnitCost = realized
			rec.ConsumedLayers = consumed
		}
		rec.BalanceQuantity = entry.Quantity
		rec.BalanceCost = entry.UnitCost()

		if _, err := e.ledger.CommitMovement(ctx, entry, version, rec); err != nil {
			if errors.Is(err, errVersionConflict) {
				lastErr = err
				continue
			}
			return MovementRecord{}, err
		}
		return rec, nil
	}
	return MovementRecord{}, fmt.Errorf("inventory: commit contention on %s: %w", key, lastErr)
}

// resolveLot applies lot policy: inbound movements may auto-register their
// lot, outbound movements either validate the named lot or ask the FEFO
// allocator for one. An issue of a product with no lots at all falls back to
// the un-lotted entry.
func (e *Engine) resolveLot(ctx context.Context, input MovementInput, inbound bool) (string, error) {
	if e.lots == nil || e.allocator == nil {
		return input.LotRef, nil
	}
	if inbound {
		if input.LotRef == "" {
			return "", nil
		}
		_, err := e.lots.Get(ctx, input.LotRef)
		if errors.Is(err, lots.ErrNotFound) {
			_, err = e.lots.Register(ctx, lots.Lot{
				ID:          input.LotRef,
				ProductRef:  input.ProductRef,
				ProductKind: input.ProductKind,
				ReceivedAt:  e.clock(),
				Status:      lots.StatusActive,
			})
		}
		if err != nil {
			return "", err
		}
		return input.LotRef, nil
	}
	// Lot policy binds issues only; adjustments target their exact key so
	// blocked or expired lots can still be corrected.
	if input.Kind != KindIssue && input.Kind != KindTransferOut {
		return input.LotRef, nil
	}
	if input.LotRef != "" {
		if err := e.allocator.ValidateLotForIssue(ctx, input.LotRef); err != nil {
			return "", err
		}
		return input.LotRef, nil
	}
	selected, err := e.allocator.SelectLotForIssue(ctx, input.ProductRef, input.ProductKind, "")
	if errors.Is(err, ErrNoLotAvailable) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return selected, nil
}

func hashInput(input MovementInput) string {
	payload, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
