// Package payments exposes the money-moving entry points that are
// driven by callers rather than by time: the gateway's capture
// callback, an admin's manual release, and cancellation.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/notify"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	redisrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
)

type Service struct {
	store     *postgresrepo.Store
	lifecycle *lifecycle.Service
	cache     *redisrepo.Cache
	pubsub    *redisrepo.BookingsPubSub
	gateway   notify.Gateway
	logger    *slog.Logger
}

func New(
	store *postgresrepo.Store,
	lc *lifecycle.Service,
	cache *redisrepo.Cache,
	pubsub *redisrepo.BookingsPubSub,
	gateway notify.Gateway,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		lifecycle: lc,
		cache:     cache,
		pubsub:    pubsub,
		gateway:   gateway,
		logger:    logger,
	}
}

// Capture records that the payment gateway collected the organizer's
// money, moving the booking to (confirmed, paid) with a capture ledger
// entry. The gateway integration itself lives outside this core; this
// is the callback it hits.
func (s *Service) Capture(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.payments.Capture"

	b, err := s.get(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}

	if b.PaymentStatus != domain.PaymentPending {
		return nil, fmt.Errorf("%s:%w", op, ErrNotPayable)
	}

	updated, err := s.transition(ctx, op, lifecycle.Request{
		BookingID: bookingID,
		From:      b.State(),
		To:        domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPaid},
		Trigger:   domain.TriggerPaymentCaptured,
		Effects: lifecycle.Effects{
			Ledger: []lifecycle.LedgerIntent{
				{Kind: domain.TxCapture, Cents: b.TotalCents},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	notify.Send(ctx, s.gateway, s.logger, notify.Notification{
		UserID:    updated.ArtistID,
		Kind:      notify.KindPaymentReceived,
		Title:     "Payment received",
		Message:   "The organizer's payment is captured and held in escrow.",
		BookingID: updated.ID,
	})

	return updated, nil
}

// Release is the manual admin override for paying out held funds
// before the grace period ends. Same transition as the release sweep.
func (s *Service) Release(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.payments.Release"

	b, err := s.get(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}

	if b.State() != (domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld}) {
		return nil, fmt.Errorf("%s:%w", op, ErrNotReleasable)
	}

	updated, err := s.transition(ctx, op, lifecycle.Request{
		BookingID: bookingID,
		From:      domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
		To:        domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
		Trigger:   domain.TriggerAdminRelease,
		Effects: lifecycle.Effects{
			Ledger: []lifecycle.LedgerIntent{
				{Kind: domain.TxRelease, Cents: b.TotalCents},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	notify.Send(ctx, s.gateway, s.logger, notify.Notification{
		UserID:    updated.ArtistID,
		Kind:      notify.KindFundsReleased,
		Title:     "Payment released",
		Message:   "The escrowed payment for your event has been released.",
		BookingID: updated.ID,
	})

	return updated, nil
}

// Cancel voids a booking that has not yet entered escrow. A refund
// entry is written only when money was actually captured.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.payments.Cancel"

	b, err := s.get(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}

	switch b.State() {
	case domain.StatePair{Event: domain.EventPending, Payment: domain.PaymentPending},
		domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPending},
		domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPaid}:
		// cancellable
	default:
		return nil, fmt.Errorf("%s:%w", op, ErrNotCancellable)
	}

	var ledger []lifecycle.LedgerIntent
	if b.PaymentStatus == domain.PaymentPaid {
		ledger = append(ledger, lifecycle.LedgerIntent{
			Kind: domain.TxRefund, Cents: b.TotalCents,
		})
	}

	updated, err := s.transition(ctx, op, lifecycle.Request{
		BookingID: bookingID,
		From:      b.State(),
		To:        domain.StatePair{Event: domain.EventCancelled, Payment: domain.PaymentRefunded},
		Trigger:   domain.TriggerCancellation,
		Effects:   lifecycle.Effects{Ledger: ledger},
	})
	if err != nil {
		return nil, err
	}

	notify.Send(ctx, s.gateway, s.logger, notify.Notification{
		UserID:    updated.ArtistID,
		Kind:      notify.KindBookingRefunded,
		Title:     "Booking cancelled",
		Message:   "The booking was cancelled.",
		BookingID: updated.ID,
	})

	return updated, nil
}

func (s *Service) get(ctx context.Context, op string, id uuid.UUID) (*domain.Booking, error) {
	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	return b, nil
}

func (s *Service) transition(
	ctx context.Context,
	op string,
	req lifecycle.Request,
) (*domain.Booking, error) {
	updated, err := s.lifecycle.TryTransition(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrConflict):
			return nil, fmt.Errorf("%s:%w", op, ErrAlreadyProcessed)
		case errors.Is(err, lifecycle.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateBooking(ctx, req.BookingID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishBookingChanged(ctx, req.BookingID, req.Trigger)
	}

	return updated, nil
}
