package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/brightsmile-hq/brightsmile-portal/internal/app"
	"github.com/brightsmile-hq/brightsmile-portal/internal/auth"
	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	"github.com/brightsmile-hq/brightsmile-portal/internal/locations"
	"github.com/brightsmile-hq/brightsmile-portal/internal/observability"
	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/cache"
	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/db"
	"github.com/brightsmile-hq/brightsmile-portal/internal/roles"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
	"github.com/brightsmile-hq/brightsmile-portal/internal/users"
	"github.com/brightsmile-hq/brightsmile-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "brightsmile_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	authzStore := authz.NewRepository(dbpool)
	permCache := authz.NewRedisCache(redisClient, cfg.PermissionCacheTTL)
	resolver := authz.NewResolver(authzStore, permCache, logger)
	gate := authz.NewGate(resolver, authzStore)
	guard := authz.Middleware{Resolver: resolver, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	notifier, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, gate, resolver, auditLogger, notifier, metrics, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, gate, resolver, auditLogger, metrics, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	locationsRepo := locations.NewRepository(dbpool)
	locationsService := locations.NewService(locationsRepo, resolver, resolver, auditLogger, metrics, logger)
	locationsHandler := locations.NewHandler(logger, locationsService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		RolesHandler:     rolesHandler,
		LocationsHandler: locationsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
