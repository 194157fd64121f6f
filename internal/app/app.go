package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ThisaraGit99/artists-management-core/internal/config"
	"github.com/ThisaraGit99/artists-management-core/internal/notify"
	"github.com/ThisaraGit99/artists-management-core/internal/postgres"
	"github.com/ThisaraGit99/artists-management-core/internal/redis"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	redisrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
	"github.com/ThisaraGit99/artists-management-core/internal/service"
	"github.com/ThisaraGit99/artists-management-core/internal/service/approval"
	"github.com/ThisaraGit99/artists-management-core/internal/service/dispute"
	"github.com/ThisaraGit99/artists-management-core/internal/service/query"
	"github.com/ThisaraGit99/artists-management-core/internal/service/sweep"
	httpgin "github.com/ThisaraGit99/artists-management-core/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	services   *service.Services
	cache      *redisrepo.Cache
	pubsub     *redisrepo.BookingsPubSub
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewBookingsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb,
		"rl",
		int(cfg.Lifecycle.DisputeRateLimit),
		cfg.Lifecycle.DisputeRateWindow,
	)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Lifecycle.IdempotencyTTL)

	var gateway notify.Gateway
	if cfg.AMQP.URL != "" {
		gateway = notify.NewAMQPGateway(cfg.AMQP.URL)
	} else {
		gateway = &notify.LogGateway{Logger: logger}
	}

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, gateway, logger, service.Config{
		Completion: sweep.CompletionConfig{
			HoldPeriod: cfg.Lifecycle.HoldPeriod,
			BatchSize:  cfg.Lifecycle.SweepBatchSize,
		},
		Release: sweep.ReleaseConfig{
			BatchSize: cfg.Lifecycle.SweepBatchSize,
		},
		Dispute: dispute.Config{
			AutoResolveAfter: cfg.Lifecycle.DisputeAutoResolveAfter,
			PartialRefundBps: int(cfg.Lifecycle.PartialRefundBps),
		},
		Approval: approval.Config{
			PlatformFeeBps: int(cfg.Lifecycle.PlatformFeeBps),
			MaxAttempts:    cfg.Lifecycle.OutboxMaxAttempts,
			RetryBackoff:   cfg.Lifecycle.OutboxRetryBackoff,
			BatchSize:      cfg.Lifecycle.OutboxBatchSize,
		},
		Query: query.Config{
			BookingSummaryTTL: cfg.Lifecycle.BookingCacheTTL,
			LedgerTTL:         cfg.Lifecycle.LedgerCacheTTL,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		cache:    cache,
		pubsub:   pubsub,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Background jobs. Context cancellation is their normal exit.
	g.Go(func() error {
		err := sweep.Every(gCtx, a.logger, "completion_sweep", a.cfg.Lifecycle.CompletionSweepInterval, func(ctx context.Context) error {
			rep, err := a.services.CompletionSweep.Run(ctx)
			if err != nil {
				return err
			}
			if rep.Scanned > 0 {
				a.logger.Info("completion sweep finished",
					"scanned", rep.Scanned,
					"transitioned", rep.Transitioned,
					"failures", len(rep.Failures),
				)
			}
			return nil
		})
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := sweep.Every(gCtx, a.logger, "release_sweep", a.cfg.Lifecycle.ReleaseSweepInterval, func(ctx context.Context) error {
			rep, err := a.services.ReleaseSweep.Run(ctx)
			if err != nil {
				return err
			}
			if rep.Scanned > 0 || rep.OverdueDisputes > 0 {
				a.logger.Info("release sweep finished",
					"scanned", rep.Scanned,
					"transitioned", rep.Transitioned,
					"failures", len(rep.Failures),
					"overdue_disputes", rep.OverdueDisputes,
				)
			}
			return nil
		})
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := sweep.Every(gCtx, a.logger, "approval_outbox", a.cfg.Lifecycle.OutboxInterval, func(ctx context.Context) error {
			processed, err := a.services.Approvals.ProcessDue(ctx)
			if err != nil {
				return err
			}
			if processed > 0 {
				a.logger.Info("approval outbox drained", "processed", processed)
			}
			return nil
		})
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	// Drop cached booking reads when another instance commits a
	// transition.
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, id uuid.UUID, trigger string) {
			if err := a.cache.InvalidateBooking(ctx, id); err != nil {
				a.logger.Warn("cache invalidation failed",
					"booking_id", id,
					"trigger", trigger,
					"error", err,
				)
			}
		})
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
