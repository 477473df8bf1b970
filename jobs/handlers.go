package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// LotSweeper blocks expired lots.
type LotSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ReservationExpirer releases stale holds.
type ReservationExpirer interface {
	ExpireStale(ctx context.Context, horizon time.Duration) (int, error)
}

// IdempotencyCleaner prunes settled idempotency entries.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Handlers bundles the task handlers with their service dependencies.
type Handlers struct {
	Lots         LotSweeper
	Reservations ReservationExpirer
	Idempotency  IdempotencyCleaner
	Logger       *slog.Logger
	Clock        func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

// HandleLotSweep processes TaskLotSweep tasks.
func (h *Handlers) HandleLotSweep(ctx context.Context, t *asynq.Task) error {
	var payload LotSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	blocked, err := h.Lots.SweepExpired(ctx, h.now())
	if err != nil {
		return err
	}
	if blocked > 0 {
		h.Logger.Info("expired lots blocked",
			slog.Int("count", blocked),
			slog.Time("scheduled_for", payload.ScheduledFor))
	}
	return nil
}

// HandleReservationExpiry processes TaskReservationExpiry tasks.
func (h *Handlers) HandleReservationExpiry(ctx context.Context, t *asynq.Task) error {
	var payload ReservationExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Horizon <= 0 {
		return asynq.SkipRetry
	}
	released, err := h.Reservations.ExpireStale(ctx, payload.Horizon)
	if err != nil {
		return err
	}
	if released > 0 {
		h.Logger.Info("stale reservations released",
			slog.Int("count", released),
			slog.Time("scheduled_for", payload.ScheduledFor))
	}
	return nil
}

// HandleIdempotencyCleanup processes TaskIdempotencyCleanup tasks.
func (h *Handlers) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	return h.Idempotency.Cleanup(ctx, payload.Retention)
}
