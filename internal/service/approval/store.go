package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	"github.com/ThisaraGit99/artists-management-core/internal/uow"
)

// PGStore adapts the postgres repositories to the service's Store
// interface. ApproveAndEnqueue is the outbox commit: status flip and
// task row in one transaction.
type PGStore struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func NewPGStore(store *postgresrepo.Store) *PGStore {
	return &PGStore{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

func (s *PGStore) GetApplication(ctx context.Context, id int64) (*domain.EventApplication, error) {
	const op = "approval.PGStore.GetApplication"

	app, err := s.store.Applications().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrApplicationNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return app, nil
}

func (s *PGStore) ApproveAndEnqueue(
	ctx context.Context,
	id int64,
	response string,
	task *domain.BookingTask,
) error {
	const op = "approval.PGStore.ApproveAndEnqueue"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		err := s.store.Applications().
			With(tx).
			SetStatusIf(ctx, id, domain.ApplicationPending, domain.ApplicationApproved, response)
		if err != nil {
			return fmt.Errorf("%s:%w", op, translateDecisionErr(err))
		}

		if err := s.store.Outbox().With(tx).Enqueue(ctx, task); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		return nil
	})
}

func (s *PGStore) Reject(ctx context.Context, id int64, response string) error {
	const op = "approval.PGStore.Reject"

	err := s.store.Applications().
		SetStatusIf(ctx, id, domain.ApplicationPending, domain.ApplicationRejected, response)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDecisionErr(err))
	}

	return nil
}

func (s *PGStore) DueTasks(ctx context.Context, now time.Time, limit int) ([]domain.BookingTask, error) {
	return s.store.Outbox().Due(ctx, now, limit)
}

func (s *PGStore) CreateBooking(
	ctx context.Context,
	t *domain.BookingTask,
	feeCents int64,
) (uuid.UUID, error) {
	return s.store.Bookings().CreateFromTask(ctx, t, feeCents)
}

func (s *PGStore) MarkTaskDone(ctx context.Context, applicationID int64, bookingID uuid.UUID) error {
	return s.store.Outbox().MarkDone(ctx, applicationID, bookingID)
}

func (s *PGStore) MarkTaskFailed(
	ctx context.Context,
	applicationID int64,
	reason string,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	return s.store.Outbox().MarkAttemptFailed(ctx, applicationID, reason, nextAttemptAt, maxAttempts)
}

func (s *PGStore) FailedTasks(ctx context.Context, limit int) ([]domain.BookingTask, error) {
	return s.store.Outbox().Failed(ctx, limit)
}

func translateDecisionErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrApplicationNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrAlreadyDecided
	}
	return err
}
