package lots

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Service owns lot registration and lifecycle transitions. Status flips to
// Blocked happen only through SweepExpired, never on the read path.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Register creates a lot. Lots may be pre-registered ahead of the first
// receipt; a zero ReceivedAt is stamped with now.
func (s *Service) Register(ctx context.Context, lot Lot) (Lot, error) {
	if strings.TrimSpace(lot.ID) == "" {
		return Lot{}, errors.New("lots: lot id is required")
	}
	if strings.TrimSpace(lot.ProductRef) == "" {
		return Lot{}, errors.New("lots: product ref is required")
	}
	if lot.ProductKind != KindRawMaterial && lot.ProductKind != KindFinishedGood {
		return Lot{}, errors.New("lots: unknown product kind")
	}
	if lot.Status == "" {
		lot.Status = StatusActive
	}
	if lot.ReceivedAt.IsZero() {
		lot.ReceivedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, lot); err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// Get fetches a lot by id.
func (s *Service) Get(ctx context.Context, id string) (Lot, error) {
	return s.repo.Get(ctx, id)
}

// Block puts an Active lot on hold.
func (s *Service) Block(ctx context.Context, id string) error {
	lot, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if lot.Status == StatusClosed {
		return ErrLotClosed
	}
	if lot.Status == StatusBlocked {
		return nil
	}
	lot.Status = StatusBlocked
	return s.repo.Update(ctx, lot)
}

// Close terminates a lot. Closed is terminal.
func (s *Service) Close(ctx context.Context, id string) error {
	lot, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if lot.Status == StatusClosed {
		return nil
	}
	lot.Status = StatusClosed
	return s.repo.Update(ctx, lot)
}

// ActiveByProduct lists Active lots of a product.
func (s *Service) ActiveByProduct(ctx context.Context, productRef string, kind ProductKind) ([]Lot, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Lot
	for _, lot := range all {
		if lot.Status == StatusActive && lot.ProductRef == productRef && lot.ProductKind == kind {
			out = append(out, lot)
		}
	}
	return out, nil
}

// SweepExpired blocks Active lots whose expiry has passed and returns how
// many lots were flipped. Invoked by the background worker on a schedule.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	blocked := 0
	for _, lot := range all {
		if lot.Status != StatusActive || !lot.Expired(now) {
			continue
		}
		lot.Status = StatusBlocked
		if err := s.repo.Update(ctx, lot); err != nil {
			return blocked, err
		}
		s.logger.Info("lot blocked on expiry",
			slog.String("lot", lot.ID),
			slog.String("product", lot.ProductRef),
			slog.Time("expires_at", *lot.ExpiresAt))
		blocked++
	}
	return blocked, nil
}
