package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/farmapi"
	apphttp "farmlink_backend/internal/http"
	"farmlink_backend/internal/http/router"
	"farmlink_backend/internal/notification"
	"farmlink_backend/internal/requests"
	"farmlink_backend/internal/requests/aggregator"
	"farmlink_backend/internal/scheduler"
	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/config"
	"farmlink_backend/platform/db"
	"farmlink_backend/platform/logger"
	"farmlink_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	emailQueue, closeQueue := initEmailQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	farmClient := farmapi.New(cfg, log)

	requestsModule := requests.NewModule(farmClient, eventBus, val, log)
	notificationModule := notification.NewModule(pool, eventBus, emailQueue, log)

	// Initial snapshot load. A partial result is enough to serve traffic;
	// only a fully dark upstream blocks startup.
	if err := withRetry(ctx, log, "initial aggregation", 5, 2*time.Second, func() error {
		_, err := requestsModule.Aggregator().Refresh(ctx)
		if apperr.GetKind(err) == apperr.KindPartialAggregation {
			log.Warn("initial aggregation partial", "error", err)
			return nil
		}
		return err
	}); err != nil {
		log.Error("failed to load initial snapshot", "error", err)
		panic("failed to load initial snapshot: " + err.Error())
	}
	log.Info("initial snapshot loaded")

	go pollSources(ctx, requestsModule.Aggregator(), cfg.RefreshInterval, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			requestsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// pollSources keeps the snapshot fresh between manual refreshes. Errors are
// logged and the next tick tries again.
func pollSources(ctx context.Context, agg *aggregator.Aggregator, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := agg.Refresh(ctx); err != nil {
				log.Warn("scheduled refresh incomplete", "error", err)
			}
		}
	}
}

func initEmailQueue(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.EmailEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notification emails disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
