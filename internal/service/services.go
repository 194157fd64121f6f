package service

import (
	"log/slog"

	"github.com/ThisaraGit99/artists-management-core/internal/notify"
	postgres "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	redis "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
	"github.com/ThisaraGit99/artists-management-core/internal/service/approval"
	"github.com/ThisaraGit99/artists-management-core/internal/service/dispute"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
	"github.com/ThisaraGit99/artists-management-core/internal/service/payments"
	"github.com/ThisaraGit99/artists-management-core/internal/service/query"
	"github.com/ThisaraGit99/artists-management-core/internal/service/sweep"
)

type Services struct {
	Lifecycle       *lifecycle.Service
	Payments        *payments.Service
	Disputes        *dispute.Service
	Approvals       *approval.Service
	CompletionSweep *sweep.Completion
	ReleaseSweep    *sweep.Release
	Query           *query.Service
}

type Config struct {
	Completion sweep.CompletionConfig
	Release    sweep.ReleaseConfig
	Dispute    dispute.Config
	Approval   approval.Config
	Query      query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.BookingsPubSub,
	limiter *redis.SlidingWindowLimiter,
	gateway notify.Gateway,
	logger *slog.Logger,
	cfg Config,
) *Services {
	lc := lifecycle.New(store, logger)

	return &Services{
		Lifecycle:       lc,
		Payments:        payments.New(store, lc, cache, pubsub, gateway, logger),
		Disputes:        dispute.New(dispute.NewPGStore(store), lc, cache, pubsub, limiter, gateway, logger, cfg.Dispute),
		Approvals:       approval.New(approval.NewPGStore(store), gateway, logger, cfg.Approval),
		CompletionSweep: sweep.NewCompletion(store.Bookings(), lc, cache, pubsub, gateway, logger, cfg.Completion),
		ReleaseSweep:    sweep.NewRelease(store.Bookings(), store.Disputes(), lc, cache, pubsub, gateway, logger, cfg.Release),
		Query:           query.New(store, cache, cfg.Query),
	}
}
