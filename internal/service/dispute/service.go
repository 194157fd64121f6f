// Package dispute lets either party freeze an escrowed payment while
// the booking sits in its releasable window, and lets an admin settle
// the dispute one way or the other.
package dispute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/notify"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	redisrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
	"github.com/ThisaraGit99/artists-management-core/internal/uow"
)

type Config struct {
	// AutoResolveAfter sets the deadline stamped on every new dispute.
	// Nothing acts on the deadline yet; overdue disputes are surfaced
	// to operators until a default-resolution policy is decided.
	AutoResolveAfter time.Duration

	// PartialRefundBps is the organizer's share of the total, in basis
	// points, when a dispute resolves as a partial refund.
	PartialRefundBps int
}

type Service struct {
	store     Store
	lifecycle Transitions
	cache     *redisrepo.Cache
	pubsub    *redisrepo.BookingsPubSub
	limiter   *redisrepo.SlidingWindowLimiter
	gateway   notify.Gateway
	logger    *slog.Logger
	cfg       Config
}

func New(
	store Store,
	lc Transitions,
	cache *redisrepo.Cache,
	pubsub *redisrepo.BookingsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	gateway notify.Gateway,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.AutoResolveAfter <= 0 {
		cfg.AutoResolveAfter = 7 * 24 * time.Hour
	}
	if cfg.PartialRefundBps <= 0 || cfg.PartialRefundBps > 10000 {
		cfg.PartialRefundBps = 5000
	}

	return &Service{
		store:     store,
		lifecycle: lc,
		cache:     cache,
		pubsub:    pubsub,
		limiter:   limiter,
		gateway:   gateway,
		logger:    logger,
		cfg:       cfg,
	}
}

// Open raises a dispute on a booking currently in the releasable
// window. The booking transition to (disputed, funds_held) and the
// dispute row commit together, so the release sweep can never pay out
// a booking that has an open dispute.
//
// Returns:
//   - *domain.Dispute: the created dispute.
//   - error: dispute.ErrAlreadyReleased if the release sweep won the
//     race and the funds are already paid out.
//   - error: dispute.ErrOpenDisputeExists if a dispute is already open.
//   - error: dispute.ErrNotDisputable if the booking is not in the
//     releasable window at all.
func (s *Service) Open(
	ctx context.Context,
	bookingID uuid.UUID,
	reporterID int64,
	kind domain.DisputeKind,
	description string,
	evidence []string,
	rlKey string,
) (*domain.Dispute, error) {
	const op = "service.dispute.Open"

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	var d *domain.Dispute

	err := s.store.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.store.Booking(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		switch b.State() {
		case domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld}:
			// disputable
		case domain.StatePair{Event: domain.EventDisputed, Payment: domain.PaymentHeld}:
			return fmt.Errorf("%s:%w", op, ErrOpenDisputeExists)
		case domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased}:
			return fmt.Errorf("%s:%w", op, ErrAlreadyReleased)
		default:
			return fmt.Errorf("%s:%w", op, ErrNotDisputable)
		}

		if _, err := s.lifecycle.Apply(ctx, tx, lifecycle.Request{
			BookingID: bookingID,
			From:      domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
			To:        domain.StatePair{Event: domain.EventDisputed, Payment: domain.PaymentHeld},
			Trigger:   domain.TriggerDisputeOpened,
		}); err != nil {
			if errors.Is(err, lifecycle.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrAlreadyReleased)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		d = &domain.Dispute{
			ID:            uuid.New(),
			BookingID:     bookingID,
			ReporterID:    reporterID,
			Kind:          kind,
			Description:   description,
			EvidenceRefs:  evidence,
			Status:        domain.DisputeOpen,
			AutoResolveAt: time.Now().Add(s.cfg.AutoResolveAfter),
		}
		if err := s.store.CreateDispute(ctx, tx, d); err != nil {
			if errors.Is(err, repository.ErrOpenDisputeExists) {
				return fmt.Errorf("%s:%w", op, ErrOpenDisputeExists)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.afterTransition(ctx, b.ID, domain.TriggerDisputeOpened)
			notify.Send(ctx, s.gateway, s.logger, notify.Notification{
				UserID:    b.ArtistID,
				Kind:      notify.KindDisputeOpened,
				Title:     "Dispute opened",
				Message:   "A dispute was opened on your booking. Payment stays in escrow until it is resolved.",
				BookingID: b.ID,
			})
			notify.Send(ctx, s.gateway, s.logger, notify.Notification{
				UserID:    b.OrganizerID,
				Kind:      notify.KindDisputeOpened,
				Title:     "Dispute opened",
				Message:   "A dispute was opened on this booking. Payment stays in escrow until it is resolved.",
				BookingID: b.ID,
			})
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Resolve settles an open dispute with an admin decision. The booking
// transition, its ledger entries and the dispute's resolved marker
// commit in one transaction.
//
// Returns:
//   - error: dispute.ErrAlreadyResolved on a second call.
//   - error: dispute.ErrUnknownDecision for a decision outside the enum.
func (s *Service) Resolve(
	ctx context.Context,
	disputeID uuid.UUID,
	decision domain.DisputeDecision,
	notes string,
) error {
	const op = "service.dispute.Resolve"

	return s.store.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		d, err := s.store.Dispute(ctx, tx, disputeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrDisputeNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if d.Status == domain.DisputeResolved {
			return fmt.Errorf("%s:%w", op, ErrAlreadyResolved)
		}

		b, err := s.store.Booking(ctx, tx, d.BookingID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		plan, err := planResolution(decision, b.TotalCents, s.cfg.PartialRefundBps)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if _, err := s.lifecycle.Apply(ctx, tx, lifecycle.Request{
			BookingID: b.ID,
			From:      domain.StatePair{Event: domain.EventDisputed, Payment: domain.PaymentHeld},
			To:        plan.To,
			Trigger:   domain.TriggerDisputeResolved,
			Effects:   lifecycle.Effects{Ledger: plan.Ledger},
		}); err != nil {
			if errors.Is(err, lifecycle.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrAlreadyResolved)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		resolution := string(decision)
		if notes != "" {
			resolution += ": " + notes
		}
		if err := s.store.ResolveDispute(ctx, tx, d.ID, resolution); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrAlreadyResolved)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.afterTransition(ctx, b.ID, domain.TriggerDisputeResolved)
			msg := "The dispute on this booking was resolved: " + string(decision) + "."
			notify.Send(ctx, s.gateway, s.logger, notify.Notification{
				UserID:    b.ArtistID,
				Kind:      notify.KindDisputeResolved,
				Title:     "Dispute resolved",
				Message:   msg,
				BookingID: b.ID,
			})
			notify.Send(ctx, s.gateway, s.logger, notify.Notification{
				UserID:    b.OrganizerID,
				Kind:      notify.KindDisputeResolved,
				Title:     "Dispute resolved",
				Message:   msg,
				BookingID: b.ID,
			})
		})

		return nil
	})
}

// ListOverdue returns open disputes past their auto-resolve deadline.
func (s *Service) ListOverdue(ctx context.Context, limit int) ([]domain.Dispute, error) {
	const op = "service.dispute.ListOverdue"

	if limit <= 0 {
		limit = 100
	}

	out, err := s.store.OverdueDisputes(ctx, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) afterTransition(ctx context.Context, bookingID uuid.UUID, trigger string) {
	if s.cache != nil {
		_ = s.cache.InvalidateBooking(ctx, bookingID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishBookingChanged(ctx, bookingID, trigger)
	}
}
