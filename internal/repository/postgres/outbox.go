package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
)

// OutboxRepo persists booking-creation tasks. A task is enqueued in
// the same transaction that approves the application, then consumed
// by the worker. application_id is the primary key, making enqueue
// and processing idempotent.
type OutboxRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OutboxRepo) With(db DB) *OutboxRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OutboxRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Enqueue inserts a pending task. Re-approving the same application
// is a no-op thanks to the conflict clause.
func (r *OutboxRepo) Enqueue(ctx context.Context, t *domain.BookingTask) error {
	const op = "postgres.OutboxRepo.Enqueue"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO booking_tasks(
			application_id, artist_id, organizer_id, event_id,
			event_ends_at, amount_cents, status, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (application_id) DO NOTHING`,
		t.ApplicationID, t.ArtistID, t.OrganizerID, t.EventID,
		t.EventEndsAt, t.AmountCents, domain.TaskPending,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Due lists pending tasks whose next attempt time has arrived.
func (r *OutboxRepo) Due(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]domain.BookingTask, error) {
	const op = "postgres.OutboxRepo.Due"

	return r.list(ctx, op,
		`SELECT `+taskColumns+`
		   FROM booking_tasks
		  WHERE status = $1 AND next_attempt_at <= $2
		  ORDER BY next_attempt_at
		  LIMIT $3`,
		domain.TaskPending, now, limit,
	)
}

// Failed lists tasks that exhausted their retries. This is the
// operator-visible reconciliation channel for approvals whose booking
// never got created.
func (r *OutboxRepo) Failed(ctx context.Context, limit int) ([]domain.BookingTask, error) {
	const op = "postgres.OutboxRepo.Failed"

	return r.list(ctx, op,
		`SELECT `+taskColumns+`
		   FROM booking_tasks
		  WHERE status = $1
		  ORDER BY updated_at DESC
		  LIMIT $2`,
		domain.TaskFailed, limit,
	)
}

// MarkDone records the created booking against the task.
func (r *OutboxRepo) MarkDone(
	ctx context.Context,
	applicationID int64,
	bookingID uuid.UUID,
) error {
	const op = "postgres.OutboxRepo.MarkDone"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`UPDATE booking_tasks
		    SET status = $2, booking_id = $3, last_error = NULL, updated_at = now()
		  WHERE application_id = $1`,
		applicationID, domain.TaskDone, bookingID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// MarkAttemptFailed bumps the attempt counter, records the error and
// schedules the next retry. Once attempts reach maxAttempts the task
// is parked as failed for reconciliation.
func (r *OutboxRepo) MarkAttemptFailed(
	ctx context.Context,
	applicationID int64,
	reason string,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	const op = "postgres.OutboxRepo.MarkAttemptFailed"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`UPDATE booking_tasks
		    SET attempts = attempts + 1,
		        last_error = $2,
		        next_attempt_at = $3,
		        status = CASE WHEN attempts + 1 >= $4 THEN 'failed' ELSE status END,
		        updated_at = now()
		  WHERE application_id = $1`,
		applicationID, reason, nextAttemptAt, maxAttempts,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

const taskColumns = `application_id, artist_id, organizer_id, event_id,
	event_ends_at, amount_cents, status, attempts, last_error,
	next_attempt_at, booking_id, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.BookingTask, error) {
	var t domain.BookingTask
	err := row.Scan(
		&t.ApplicationID, &t.ArtistID, &t.OrganizerID, &t.EventID,
		&t.EventEndsAt, &t.AmountCents, &t.Status, &t.Attempts, &t.LastError,
		&t.NextAttemptAt, &t.BookingID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *OutboxRepo) list(
	ctx context.Context,
	op string,
	sql string,
	args ...any,
) ([]domain.BookingTask, error) {
	db := r.handle()

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.BookingTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
