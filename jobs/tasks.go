package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLotSweep blocks lots whose expiry date has passed.
	TaskLotSweep = "inventory:lot_sweep"
	// TaskReservationExpiry releases stale reservations.
	TaskReservationExpiry = "inventory:reservation_expiry"
	// TaskIdempotencyCleanup prunes settled idempotency entries.
	TaskIdempotencyCleanup = "inventory:idempotency_cleanup"
)

// LotSweepPayload carries scheduling metadata for the expiry sweep.
type LotSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLotSweepTask constructs an Asynq task for the lot expiry sweep.
func NewLotSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LotSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLotSweep, body, asynq.Queue(QueueDefault)), nil
}

// ReservationExpiryPayload carries the release horizon for stale holds.
type ReservationExpiryPayload struct {
	ScheduledFor time.Time     `json:"scheduled_for"`
	Horizon      time.Duration `json:"horizon"`
}

// NewReservationExpiryTask constructs an Asynq task releasing holds older
// than horizon.
func NewReservationExpiryTask(at time.Time, horizon time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(ReservationExpiryPayload{ScheduledFor: at, Horizon: horizon})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationExpiry, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window for settled entries.
type IdempotencyCleanupPayload struct {
	ScheduledFor time.Time     `json:"scheduled_for"`
	Retention    time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task pruning idempotency
// entries older than retention.
func NewIdempotencyCleanupTask(at time.Time, retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{ScheduledFor: at, Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
