package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/notify"
	redisrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
)

type ReleaseConfig struct {
	BatchSize int
}

// Disputes lists open disputes past their auto-resolve deadline.
type Disputes interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error)
}

// Release pays out held funds once the grace period elapses. Disputed
// bookings never show up in its scan: opening a dispute moved their
// event status off event_completed, which is the whole freeze
// mechanism — no lock involved.
type Release struct {
	store     Store
	disputes  Disputes
	lifecycle Transitions
	cache     *redisrepo.Cache
	pubsub    *redisrepo.BookingsPubSub
	gateway   notify.Gateway
	logger    *slog.Logger
	cfg       ReleaseConfig
}

func NewRelease(
	store Store,
	disputes Disputes,
	lc Transitions,
	cache *redisrepo.Cache,
	pubsub *redisrepo.BookingsPubSub,
	gateway notify.Gateway,
	logger *slog.Logger,
	cfg ReleaseConfig,
) *Release {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	return &Release{
		store:     store,
		disputes:  disputes,
		lifecycle: lc,
		cache:     cache,
		pubsub:    pubsub,
		gateway:   gateway,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes one release pass.
func (s *Release) Run(ctx context.Context) (Report, error) {
	return s.run(ctx, time.Now())
}

func (s *Release) run(ctx context.Context, now time.Time) (Report, error) {
	const op = "service.sweep.Release.run"

	var rep Report

	candidates, err := s.store.DueForRelease(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return rep, fmt.Errorf("%s:%w", op, err)
	}

	rep.Scanned = len(candidates)

	for i := range candidates {
		b := &candidates[i]

		updated, err := s.lifecycle.TryTransition(ctx, lifecycle.Request{
			BookingID: b.ID,
			From:      domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
			To:        domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
			Trigger:   domain.TriggerReleaseSweep,
			Effects: lifecycle.Effects{
				Ledger: []lifecycle.LedgerIntent{
					{Kind: domain.TxRelease, Cents: b.TotalCents},
				},
			},
		})
		if err != nil {
			// A dispute opened between the scan and the swap wins the
			// race; the row simply isn't ours to release anymore.
			if errors.Is(err, lifecycle.ErrConflict) {
				continue
			}
			rep.Failures = append(rep.Failures, Failure{BookingID: b.ID, Err: err.Error()})
			continue
		}

		rep.Transitioned++

		if s.cache != nil {
			_ = s.cache.InvalidateBooking(ctx, updated.ID)
		}
		if s.pubsub != nil {
			_ = s.pubsub.PublishBookingChanged(ctx, updated.ID, domain.TriggerReleaseSweep)
		}

		notify.Send(ctx, s.gateway, s.logger, notify.Notification{
			UserID:    updated.ArtistID,
			Kind:      notify.KindFundsReleased,
			Title:     "Payment released",
			Message:   "The escrowed payment for your event has been released.",
			BookingID: updated.ID,
		})
	}

	if s.disputes != nil {
		overdue, err := s.disputes.ListOverdue(ctx, now, s.cfg.BatchSize)
		if err != nil {
			s.logger.Error("overdue dispute scan failed", "error", err)
		} else {
			rep.OverdueDisputes = len(overdue)
			if len(overdue) > 0 {
				s.logger.Warn("open disputes past their auto-resolve deadline",
					"count", len(overdue),
				)
			}
		}
	}

	return rep, nil
}
