package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"atenea/backend/internal/config"
	"atenea/backend/internal/jobs"
	"atenea/backend/internal/logging"
	"atenea/backend/internal/service"
	pgstore "atenea/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := validateWorkerConfig(cfg); err != nil {
		logger.Fatal("invalid worker configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer func() { _ = pg.Close() }()

	svc := service.New(pg, service.Options{
		Logger:          logger,
		VoucherValidity: cfg.VoucherValidity(),
		LayawayValidity: cfg.LayawayValidity(),
	})
	sweepJob := jobs.NewVoucherSweepJob(svc, logger)

	sweepTask, err := jobs.NewVoucherSweepTask(time.Now().UTC())
	if err != nil {
		logger.Fatal("build voucher sweep task", zap.Error(err))
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskVoucherSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.VoucherSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Fatal("init worker", zap.Error(err))
	}

	// Catch up on anything that expired while the worker was down.
	client := jobs.NewClient(redisOpts)
	if _, err := client.EnqueueVoucherSweep(ctx, time.Now().UTC()); err != nil {
		logger.Warn("enqueue startup sweep", zap.Error(err))
	}
	_ = client.Close()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker run", zap.Error(err))
	}
	logger.Info("worker stopped")
}

// validateWorkerConfig requires the shared database and queue; a worker on
// a private in-memory store would sweep vouchers no server can see.
func validateWorkerConfig(cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required to run the worker")
	}
	if cfg.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required to run the worker")
	}
	return nil
}
