package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/brightsmile-hq/brightsmile-portal/internal/app"
	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	jobmetrics "github.com/brightsmile-hq/brightsmile-portal/internal/jobs"
	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/cache"
	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/db"
	"github.com/brightsmile-hq/brightsmile-portal/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authzStore := authz.NewRepository(pool)
	permCache := authz.NewRedisCache(redisClient, cfg.PermissionCacheTTL)
	resolver := authz.NewResolver(authzStore, permCache, logger)

	sweepJob := jobs.NewExpirySweepJob(pool, resolver, logger, jobmetrics.NewMetrics(nil))

	sweepTask, err := jobs.NewExpirySweepTask(jobs.ExpirySweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeExpirySweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
