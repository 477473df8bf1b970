package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arabica-erp/arabica-erp/internal/app"
	"github.com/arabica-erp/arabica-erp/internal/inventory"
	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/platform/db"
	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
	"github.com/arabica-erp/arabica-erp/internal/reservations"
	"github.com/arabica-erp/arabica-erp/internal/shared"
	"github.com/arabica-erp/arabica-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := docstore.NewPostgres(pool)
	ledger := inventory.NewLedger(store)
	lotService := lots.NewService(lots.NewRepository(store), logger)
	reservationService := reservations.NewService(
		reservations.NewRepository(store), ledger, shared.NewKeyMutex(), logger, nil)
	idemStore := shared.NewIdempotencyStore(store)

	now := time.Now().UTC()
	sweepTask, err := jobs.NewLotSweepTask(now)
	if err != nil {
		logger.Error("build lot sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	expiryTask, err := jobs.NewReservationExpiryTask(now, cfg.ReservationHorizon)
	if err != nil {
		logger.Error("build reservation expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(now, cfg.IdemRetention)
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: &jobs.Handlers{
			Lots:         lotService,
			Reservations: reservationService,
			Idempotency:  idemStore,
			Logger:       logger,
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LotSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ReservationCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdemCleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
