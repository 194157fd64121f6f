package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingColumns = `id, application_id, artist_id, organizer_id, event_id,
	event_ends_at, total_cents, fee_cents, net_cents,
	event_status, payment_status, auto_release_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.ApplicationID, &b.ArtistID, &b.OrganizerID, &b.EventID,
		&b.EventEndsAt, &b.TotalCents, &b.FeeCents, &b.NetCents,
		&b.EventStatus, &b.PaymentStatus, &b.AutoReleaseAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Get retrieves a booking by its ID.
//
// Returns:
//   - *domain.Booking: the booking when found.
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// UpdateStateIf applies a compare-and-swap state change: the row is
// updated only if its current (event_status, payment_status) pair
// still equals `from`. auto_release_at is overwritten with the given
// value on every successful swap, so leaving the releasable window
// always clears it.
//
// Returns:
//   - *domain.Booking: the updated row when the swap applied.
//   - error: repository.ErrConflict if the booking exists but its
//     state no longer matches `from`.
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) UpdateStateIf(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.StatePair,
	autoReleaseAt *time.Time,
) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.UpdateStateIf"

	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`UPDATE bookings
		    SET event_status = $4,
		        payment_status = $5,
		        auto_release_at = $6,
		        updated_at = now()
		  WHERE id = $1
		    AND event_status = $2
		    AND payment_status = $3
		 RETURNING `+bookingColumns,
		id, from.Event, from.Payment, to.Event, to.Payment, autoReleaseAt,
	))
	if err == nil {
		return b, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil, fmt.Errorf("%s:%w", op, repository.ErrConflict)
}

// DueForCompletion lists bookings whose event has ended but whose
// funds are still merely captured. Candidates only; each row is
// advanced individually through the CAS update, never in bulk.
func (r *BookingRepo) DueForCompletion(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.DueForCompletion"

	return r.list(ctx, op,
		`SELECT `+bookingColumns+`
		   FROM bookings
		  WHERE event_status = $1
		    AND payment_status = $2
		    AND event_ends_at < $3
		  ORDER BY event_ends_at
		  LIMIT $4`,
		domain.EventConfirmed, domain.PaymentPaid, now, limit,
	)
}

// DueForRelease lists bookings whose grace period has elapsed.
// Disputed bookings are excluded by the predicate itself: their
// event_status is no longer event_completed.
func (r *BookingRepo) DueForRelease(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.DueForRelease"

	return r.list(ctx, op,
		`SELECT `+bookingColumns+`
		   FROM bookings
		  WHERE event_status = $1
		    AND payment_status = $2
		    AND auto_release_at <= $3
		  ORDER BY auto_release_at
		  LIMIT $4`,
		domain.EventCompleted, domain.PaymentHeld, now, limit,
	)
}

func (r *BookingRepo) list(
	ctx context.Context,
	op string,
	sql string,
	args ...any,
) ([]domain.Booking, error) {
	db := r.handle()

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// CreateFromTask inserts the booking for an approved application.
// The insert is keyed by application_id, so a retried task finds the
// existing row instead of creating a duplicate. New bookings start in
// (confirmed, pending_payment).
func (r *BookingRepo) CreateFromTask(
	ctx context.Context,
	t *domain.BookingTask,
	feeCents int64,
) (uuid.UUID, error) {
	const op = "postgres.BookingRepo.CreateFromTask"

	db := r.handle()

	id := uuid.New()
	err := db.QueryRow(ctx,
		`INSERT INTO bookings(
			id, application_id, artist_id, organizer_id, event_id,
			event_ends_at, total_cents, fee_cents, net_cents,
			event_status, payment_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (application_id) DO NOTHING
		 RETURNING id`,
		id, t.ApplicationID, t.ArtistID, t.OrganizerID, t.EventID,
		t.EventEndsAt, t.AmountCents, feeCents, t.AmountCents-feeCents,
		domain.EventConfirmed, domain.PaymentPending,
	).Scan(&id)
	if err == nil {
		return id, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, wrapDBErr(op, err)
	}

	// Conflict on application_id: a previous attempt already created it.
	if err := db.QueryRow(ctx,
		`SELECT id FROM bookings WHERE application_id = $1`,
		t.ApplicationID,
	).Scan(&id); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}
