package counts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/inventory"
	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
	"github.com/arabica-erp/arabica-erp/internal/shared"
)

const countPrefix = "count:"

// EnginePort is the slice of the costing engine the reconciler drives.
type EnginePort interface {
	RecordMovement(ctx context.Context, input inventory.MovementInput) (inventory.MovementRecord, error)
}

// LedgerReader reads current entry state for difference computation.
type LedgerReader interface {
	GetEntry(ctx context.Context, key inventory.StockKey) (inventory.StockLedgerEntry, int64, error)
}

// Service reconciles physical counts against the ledger. Differences are
// computed at close time against the then-current system quantity; a count
// racing concurrent movements settles on the ledger as of closing, which is
// the accepted trade-off.
type Service struct {
	store  docstore.Store
	engine EnginePort
	ledger LedgerReader
	locks  *shared.KeyMutex
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds Service.
func NewService(store docstore.Store, engine EnginePort, ledger LedgerReader, logger *slog.Logger, clock func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, engine: engine, ledger: ledger, locks: shared.NewKeyMutex(), logger: logger, clock: clock}
}

// Open starts a count session.
func (s *Service) Open(ctx context.Context) (CycleCount, error) {
	count := CycleCount{
		ID:       uuid.NewString(),
		State:    StateOpen,
		OpenedAt: s.clock(),
	}
	if err := s.put(ctx, count); err != nil {
		return CycleCount{}, err
	}
	return count, nil
}

// Get fetches a count by id.
func (s *Service) Get(ctx context.Context, id string) (CycleCount, error) {
	doc, err := s.store.Get(ctx, countPrefix+id)
	if errors.Is(err, docstore.ErrNotFound) {
		return CycleCount{}, ErrNotFound
	}
	if err != nil {
		return CycleCount{}, err
	}
	var count CycleCount
	if err := json.Unmarshal(doc.Value, &count); err != nil {
		return CycleCount{}, fmt.Errorf("counts: decode %s: %w", id, err)
	}
	return count, nil
}

// AddLine records a counted quantity for a stock key. A repeated key edits
// the existing line.
func (s *Service) AddLine(ctx context.Context, countID string, key inventory.StockKey, counted decimal.Decimal) (CycleCount, error) {
	if counted.IsNegative() {
		return CycleCount{}, errors.New("counts: counted quantity must be >= 0")
	}
	lockKey := "count|" + countID
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	count, err := s.Get(ctx, countID)
	if err != nil {
		return CycleCount{}, err
	}
	if count.State != StateOpen {
		return CycleCount{}, ErrNotOpen
	}
	replaced := false
	for i := range count.Lines {
		if count.Lines[i].StockKey == key {
			count.Lines[i].CountedQuantity = counted
			replaced = true
			break
		}
	}
	if !replaced {
		count.Lines = append(count.Lines, Line{StockKey: key, CountedQuantity: counted})
	}
	if err := s.put(ctx, count); err != nil {
		return CycleCount{}, err
	}
	return count, nil
}

// Close settles every unsettled line: the difference against the current
// system quantity becomes a corrective adjustment movement. Adjustments are
// not transactional across lines: a failed line leaves the count Open with
// its error reported, already-applied adjustments stand.
func (s *Service) Close(ctx context.Context, countID string) ([]LineResult, error) {
	lockKey := "count|" + countID
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	count, err := s.Get(ctx, countID)
	if err != nil {
		return nil, err
	}
	if count.State == StateClosed {
		return nil, ErrAlreadyClosed
	}

	results := make([]LineResult, 0, len(count.Lines))
	failed := 0
	for i := range count.Lines {
		line := &count.Lines[i]
		if line.Settled {
			results = append(results, LineResult{StockKey: line.StockKey, MovementID: line.AdjustmentMovementID})
			continue
		}
		result := s.settleLine(ctx, countID, i, line)
		if result.Err != nil {
			failed++
		}
		results = append(results, result)
	}

	if failed == 0 {
		closedAt := s.clock()
		count.State = StateClosed
		count.ClosedAt = &closedAt
	}
	if err := s.put(ctx, count); err != nil {
		return results, err
	}
	if failed > 0 {
		s.logger.Warn("count close incomplete",
			slog.String("count", countID),
			slog.Int("failed_lines", failed))
		return results, fmt.Errorf("counts: %d of %d lines failed, count remains open", failed, len(count.Lines))
	}
	return results, nil
}

func (s *Service) settleLine(ctx context.Context, countID string, idx int, line *Line) LineResult {
	entry, _, err := s.ledger.GetEntry(ctx, line.StockKey)
	systemQty := decimal.Zero
	method := inventory.WeightedAverage
	unitCost := decimal.Zero
	switch {
	case err == nil:
		systemQty = entry.Quantity
		method = entry.CostingMethod
		unitCost = entry.UnitCost()
	case errors.Is(err, inventory.ErrEntryNotFound):
	default:
		return LineResult{StockKey: line.StockKey, Err: err}
	}

	line.SystemQuantityAtClose = systemQty
	line.Difference = line.CountedQuantity.Sub(systemQty)
	if line.Difference.IsZero() {
		line.Settled = true
		return LineResult{StockKey: line.StockKey}
	}

	// Deterministic correlation id: a crash between posting and persisting
	// Settled makes the re-close replay the stored movement instead of
	// posting a second adjustment.
	input := inventory.MovementInput{
		ProductRef:    line.StockKey.ProductRef,
		ProductKind:   line.StockKey.ProductKind,
		LotRef:        line.StockKey.LotRef,
		Quantity:      line.Difference.Abs(),
		CostingMethod: method,
		CorrelationID: fmt.Sprintf("%s:line:%d", countID, idx),
		Note:          "cycle count adjustment",
	}
	if line.Difference.IsPositive() {
		input.Kind = inventory.KindPositiveAdjustment
		input.UnitCost = unitCost
		input.WarehouseTo = line.StockKey.WarehouseRef
		input.LocationTo = line.StockKey.LocationRef
	} else {
		input.Kind = inventory.KindNegativeAdjustment
		input.WarehouseFrom = line.StockKey.WarehouseRef
		input.LocationFrom = line.StockKey.LocationRef
	}

	rec, err := s.engine.RecordMovement(ctx, input)
	if err != nil {
		return LineResult{StockKey: line.StockKey, Err: err}
	}
	line.AdjustmentMovementID = rec.ID
	line.Settled = true
	return LineResult{StockKey: line.StockKey, MovementID: rec.ID}
}

func (s *Service) put(ctx context.Context, count CycleCount) error {
	encoded, err := json.Marshal(count)
	if err != nil {
		return err
	}
	_, err = s.store.Put(ctx, countPrefix+count.ID, encoded, docstore.VersionAny)
	return err
}
