package reservations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/shared"
)

// StockReader is the read-only slice of the ledger the service consults:
// physical quantity at a promise key, summed across lots.
type StockReader interface {
	QuantityAt(ctx context.Context, productRef string, kind lots.ProductKind, warehouseRef, locationRef string) (decimal.Decimal, error)
}

// Service owns reservation state. The availability check and the insert run
// under one per-key lock so concurrent holds cannot both observe the same
// headroom.
type Service struct {
	repo   Repository
	stock  StockReader
	locks  *shared.KeyMutex
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, stock StockReader, locks *shared.KeyMutex, logger *slog.Logger, clock func() time.Time) *Service {
	if locks == nil {
		locks = shared.NewKeyMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: repo, stock: stock, locks: locks, logger: logger, clock: clock}
}

// AvailableToPromise returns physical quantity minus active holds on key.
func (s *Service) AvailableToPromise(ctx context.Context, key PromiseKey) (decimal.Decimal, error) {
	physical, err := s.stock.QuantityAt(ctx, key.ProductRef, key.ProductKind, key.WarehouseRef, key.LocationRef)
	if err != nil {
		return decimal.Zero, err
	}
	held, err := s.activeSum(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return physical.Sub(held), nil
}

// CreateReservation places a hold when availability allows it.
func (s *Service) CreateReservation(ctx context.Context, key PromiseKey, qty decimal.Decimal, referenceID string) (Reservation, error) {
	if !qty.IsPositive() {
		return Reservation{}, ErrInvalidQuantity
	}

	lockKey := "reservation|" + key.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	available, err := s.AvailableToPromise(ctx, key)
	if err != nil {
		return Reservation{}, err
	}
	if qty.GreaterThan(available) {
		return Reservation{}, ErrInsufficientAvailability
	}
	rsv := Reservation{
		ID:           uuid.NewString(),
		ProductRef:   key.ProductRef,
		ProductKind:  key.ProductKind,
		WarehouseRef: key.WarehouseRef,
		LocationRef:  key.LocationRef,
		Quantity:     qty,
		State:        StateActive,
		ReferenceID:  referenceID,
		CreatedAt:    s.clock(),
	}
	if err := s.repo.Put(ctx, rsv); err != nil {
		return Reservation{}, err
	}
	s.logger.Info("reservation created",
		slog.String("id", rsv.ID),
		slog.String("key", key.String()),
		slog.String("quantity", qty.String()))
	return rsv, nil
}

// Release cancels a hold. Releasing a reservation already in a terminal
// state is a no-op.
func (s *Service) Release(ctx context.Context, id string) error {
	rsv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rsv.State != StateActive {
		return nil
	}
	lockKey := "reservation|" + rsv.promiseKey().String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	rsv, err = s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rsv.State != StateActive {
		return nil
	}
	rsv.State = StateReleased
	return s.repo.Put(ctx, rsv)
}

// Consume settles a hold immediately before the matching physical issue.
// Invoking it twice is rejected.
func (s *Service) Consume(ctx context.Context, id string) error {
	rsv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	lockKey := "reservation|" + rsv.promiseKey().String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	rsv, err = s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	switch rsv.State {
	case StateActive:
		rsv.State = StateConsumed
		return s.repo.Put(ctx, rsv)
	case StateConsumed:
		return ErrAlreadyConsumed
	default:
		return fmt.Errorf("reservations: cannot consume %s reservation", rsv.State)
	}
}

// ExpireStale releases Active reservations older than horizon and returns
// how many were released. Run by the background worker.
func (s *Service) ExpireStale(ctx context.Context, horizon time.Duration) (int, error) {
	cutoff := s.clock().Add(-horizon)
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, rsv := range all {
		if rsv.State != StateActive || !rsv.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Release(ctx, rsv.ID); err != nil {
			return released, err
		}
		s.logger.Info("reservation expired",
			slog.String("id", rsv.ID),
			slog.Time("created_at", rsv.CreatedAt))
		released++
	}
	return released, nil
}

func (s *Service) activeSum(ctx context.Context, key PromiseKey) (decimal.Decimal, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rsv := range all {
		if rsv.State != StateActive {
			continue
		}
		if rsv.promiseKey() == key {
			total = total.Add(rsv.Quantity)
		}
	}
	return total, nil
}

func (r Reservation) promiseKey() PromiseKey {
	return PromiseKey{
		ProductRef:   r.ProductRef,
		ProductKind:  r.ProductKind,
		WarehouseRef: r.WarehouseRef,
		LocationRef:  r.LocationRef,
	}
}
