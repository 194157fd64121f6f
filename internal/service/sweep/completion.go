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

type CompletionConfig struct {
	// HoldPeriod is how long released payment sits in escrow after the
	// event completes before the release sweep pays it out.
	HoldPeriod time.Duration
	BatchSize  int
}

// Completion detects bookings whose event has elapsed and moves them
// into the funds-held state, stamping the auto-release date.
type Completion struct {
	store     Store
	lifecycle Transitions
	cache     *redisrepo.Cache
	pubsub    *redisrepo.BookingsPubSub
	gateway   notify.Gateway
	logger    *slog.Logger
	cfg       CompletionConfig
}

func NewCompletion(
	store Store,
	lc Transitions,
	cache *redisrepo.Cache,
	pubsub *redisrepo.BookingsPubSub,
	gateway notify.Gateway,
	logger *slog.Logger,
	cfg CompletionConfig,
) *Completion {
	if cfg.HoldPeriod <= 0 {
		cfg.HoldPeriod = 72 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	return &Completion{
		store:     store,
		lifecycle: lc,
		cache:     cache,
		pubsub:    pubsub,
		gateway:   gateway,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes one sweep pass. Safe to run concurrently with other
// instances and with dispute/admin actions: every advance is a CAS,
// and a conflict just means someone else already moved the row.
func (s *Completion) Run(ctx context.Context) (Report, error) {
	return s.run(ctx, time.Now())
}

func (s *Completion) run(ctx context.Context, now time.Time) (Report, error) {
	const op = "service.sweep.Completion.run"

	var rep Report

	candidates, err := s.store.DueForCompletion(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return rep, fmt.Errorf("%s:%w", op, err)
	}

	rep.Scanned = len(candidates)

	for i := range candidates {
		b := &candidates[i]

		releaseAt := now.Add(s.cfg.HoldPeriod)
		updated, err := s.lifecycle.TryTransition(ctx, lifecycle.Request{
			BookingID: b.ID,
			From:      domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPaid},
			To:        domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
			Trigger:   domain.TriggerCompletionSweep,
			Effects:   lifecycle.Effects{AutoReleaseAt: &releaseAt},
		})
		if err != nil {
			// Already advanced by a concurrent run or a manual action.
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
			_ = s.pubsub.PublishBookingChanged(ctx, updated.ID, domain.TriggerCompletionSweep)
		}

		notify.Send(ctx, s.gateway, s.logger, notify.Notification{
			UserID:    updated.ArtistID,
			Kind:      notify.KindEventCompleted,
			Title:     "Event completed",
			Message:   "Your event is marked complete. Payment is held and will be released after the review period.",
			BookingID: updated.ID,
		})
		notify.Send(ctx, s.gateway, s.logger, notify.Notification{
			UserID:    updated.OrganizerID,
			Kind:      notify.KindEventCompleted,
			Title:     "Event completed",
			Message:   "The event is marked complete. Raise a dispute before the review period ends if something went wrong.",
			BookingID: updated.ID,
		})
	}

	return rep, nil
}
