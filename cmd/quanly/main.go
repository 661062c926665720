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

	"github.com/quanly-erp/quanly/internal/app"
	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/customers"
	"github.com/quanly-erp/quanly/internal/employees"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/platform/cache"
	"github.com/quanly-erp/quanly/internal/platform/db"
	"github.com/quanly-erp/quanly/internal/roles"
	"github.com/quanly-erp/quanly/jobs"
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

	provider, err := app.NewIdentityProvider(cfg, redisClient, logger)
	if err != nil {
		logger.Error("identity provider", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	srv, err := app.Build(cfg, logger, app.Deps{
		Provider:    provider,
		Employees:   guard.NewRepository(pool),
		Customers:   customers.NewRepository(pool),
		Roles:       roles.NewRepository(pool),
		Directory:   employees.NewRepository(pool),
		Audit:       audit.NewQueueSink(jobClient, logger).WithTimeout(cfg.AuditEnqueueTimeout),
		AuditLister: audit.NewLogger(pool),
		Inspector:   inspector,
	})
	if err != nil {
		logger.Error("build application", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      srv.Handler,
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
