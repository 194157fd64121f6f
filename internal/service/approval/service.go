// Package approval turns an organizer's decision on an artist's event
// application into a booking. The approval itself and the booking
// creation are two separably-failing steps on purpose: the approval
// commits together with an outbox task, and an idempotent worker
// creates the booking from the task. A booking-creation failure never
// reverts the approval — it lands in the reconciliation channel.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/notify"
)

// Store is the persistence the service needs. ApproveAndEnqueue must
// commit the status change and the outbox task atomically; everything
// else is a plain call.
type Store interface {
	GetApplication(ctx context.Context, id int64) (*domain.EventApplication, error)
	ApproveAndEnqueue(ctx context.Context, id int64, response string, task *domain.BookingTask) error
	Reject(ctx context.Context, id int64, response string) error

	DueTasks(ctx context.Context, now time.Time, limit int) ([]domain.BookingTask, error)
	CreateBooking(ctx context.Context, t *domain.BookingTask, feeCents int64) (uuid.UUID, error)
	MarkTaskDone(ctx context.Context, applicationID int64, bookingID uuid.UUID) error
	MarkTaskFailed(ctx context.Context, applicationID int64, reason string, nextAttemptAt time.Time, maxAttempts int) error
	FailedTasks(ctx context.Context, limit int) ([]domain.BookingTask, error)
}

type Config struct {
	// PlatformFeeBps is the platform's cut in basis points, applied
	// once when the booking row is created and immutable afterwards.
	PlatformFeeBps int

	MaxAttempts  int
	RetryBackoff time.Duration
	BatchSize    int
}

// Result is what an approval returns to the caller. BookingID is set
// when the booking could be created inline; otherwise
// PendingReconciliation marks that the worker will pick the task up.
type Result struct {
	ApplicationID         int64
	BookingID             *uuid.UUID
	PendingReconciliation bool
}

type Service struct {
	store   Store
	gateway notify.Gateway
	logger  *slog.Logger
	cfg     Config
}

func New(store Store, gateway notify.Gateway, logger *slog.Logger, cfg Config) *Service {
	if cfg.PlatformFeeBps <= 0 {
		cfg.PlatformFeeBps = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &Service{
		store:   store,
		gateway: gateway,
		logger:  logger,
		cfg:     cfg,
	}
}

// Approve marks a pending application approved and enqueues the
// booking-creation task in the same commit. Once that commit lands the
// approval is authoritative: the method then makes one inline attempt
// at the task, but an inline failure only defers the booking to the
// worker — it is never reported as an approval failure.
//
// Returns:
//   - Result: the created booking id, or a pending-reconciliation marker.
//   - error: approval.ErrApplicationNotFound / ErrAlreadyDecided.
func (s *Service) Approve(
	ctx context.Context,
	applicationID int64,
	response string,
) (Result, error) {
	const op = "service.approval.Approve"

	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	if app.Status != domain.ApplicationPending {
		return Result{}, fmt.Errorf("%s:%w", op, ErrAlreadyDecided)
	}

	task := &domain.BookingTask{
		ApplicationID: app.ID,
		ArtistID:      app.ArtistID,
		OrganizerID:   app.OrganizerID,
		EventID:       app.EventID,
		EventEndsAt:   app.EventEndsAt,
		AmountCents:   app.AmountCents,
		Status:        domain.TaskPending,
	}

	if err := s.store.ApproveAndEnqueue(ctx, applicationID, response, task); err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	// The approval is committed. Try the task inline for a fast path;
	// any failure here is the worker's problem, not the caller's.
	bookingID, err := s.processTask(ctx, task, time.Now())
	if err != nil {
		s.logger.Warn("booking creation deferred to worker",
			"application_id", applicationID,
			"error", err,
		)
		return Result{ApplicationID: applicationID, PendingReconciliation: true}, nil
	}

	return Result{ApplicationID: applicationID, BookingID: &bookingID}, nil
}

// Reject marks a pending application rejected. No booking side effect.
func (s *Service) Reject(ctx context.Context, applicationID int64, response string) error {
	const op = "service.approval.Reject"

	if err := s.store.Reject(ctx, applicationID, response); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// ProcessDue drains due outbox tasks once. Called periodically; every
// step is idempotent, so overlapping runs at worst repeat no-op work.
func (s *Service) ProcessDue(ctx context.Context) (int, error) {
	const op = "service.approval.ProcessDue"

	now := time.Now()

	tasks, err := s.store.DueTasks(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	done := 0
	for i := range tasks {
		if _, err := s.processTask(ctx, &tasks[i], now); err != nil {
			s.logger.Error("booking task failed",
				"application_id", tasks[i].ApplicationID,
				"attempts", tasks[i].Attempts+1,
				"error", err,
			)
			continue
		}
		done++
	}

	return done, nil
}

// FailedTasks is the operator-visible reconciliation channel:
// approvals whose booking never got created within the retry budget.
func (s *Service) FailedTasks(ctx context.Context, limit int) ([]domain.BookingTask, error) {
	const op = "service.approval.FailedTasks"

	if limit <= 0 {
		limit = 100
	}

	out, err := s.store.FailedTasks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) processTask(
	ctx context.Context,
	t *domain.BookingTask,
	now time.Time,
) (uuid.UUID, error) {
	fee := domain.ComputeFee(t.AmountCents, s.cfg.PlatformFeeBps)

	bookingID, err := s.store.CreateBooking(ctx, t, fee)
	if err != nil {
		backoff := s.cfg.RetryBackoff * time.Duration(t.Attempts+1)
		if markErr := s.store.MarkTaskFailed(
			ctx, t.ApplicationID, err.Error(), now.Add(backoff), s.cfg.MaxAttempts,
		); markErr != nil {
			s.logger.Error("failed to record booking task failure",
				"application_id", t.ApplicationID,
				"error", markErr,
			)
		}
		return uuid.Nil, err
	}

	if err := s.store.MarkTaskDone(ctx, t.ApplicationID, bookingID); err != nil {
		return uuid.Nil, err
	}

	notify.Send(ctx, s.gateway, s.logger, notify.Notification{
		UserID:    t.ArtistID,
		Kind:      notify.KindBookingCreated,
		Title:     "Application approved",
		Message:   "Your application was approved and a booking has been created.",
		BookingID: bookingID,
	})

	return bookingID, nil
}
