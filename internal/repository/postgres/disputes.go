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

type DisputeRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DisputeRepo) With(db DB) *DisputeRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DisputeRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts an open dispute. A partial unique index on
// (booking_id) WHERE status = 'open' enforces at most one open
// dispute per booking.
//
// Returns:
//   - error: repository.ErrOpenDisputeExists if the booking already
//     has an open dispute.
func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	const op = "postgres.DisputeRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO disputes(
			id, booking_id, reporter_id, kind, description,
			evidence_refs, status, auto_resolve_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.BookingID, d.ReporterID, d.Kind, d.Description,
		d.EvidenceRefs, d.Status, d.AutoResolveAt,
	); err != nil {
		wrapped := wrapDBErr(op, err)
		if errors.Is(wrapped, repository.ErrConflict) {
			return fmt.Errorf("%s:%w", op, repository.ErrOpenDisputeExists)
		}
		return wrapped
	}

	return nil
}

// Get retrieves a dispute by its ID.
func (r *DisputeRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	const op = "postgres.DisputeRepo.Get"

	db := r.handle()

	d, err := scanDispute(db.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// ResolveIf marks an open dispute resolved, recording the decision.
// Compare-and-swap on status: a dispute that is already resolved is
// left untouched.
//
// Returns:
//   - error: repository.ErrConflict if the dispute exists but is not open.
//   - error: repository.ErrNotFound if the dispute does not exist.
func (r *DisputeRepo) ResolveIf(
	ctx context.Context,
	id uuid.UUID,
	resolution string,
) error {
	const op = "postgres.DisputeRepo.ResolveIf"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE disputes
		    SET status = $3, resolution = $4, resolved_at = now()
		  WHERE id = $1 AND status = $2`,
		id, domain.DisputeOpen, domain.DisputeResolved, resolution,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM disputes WHERE id = $1)`,
			id,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return nil
}

// ListOverdue returns open disputes whose auto-resolve deadline has
// passed. Nothing resolves these automatically; they are surfaced for
// operators until the default-resolution policy is decided.
func (r *DisputeRepo) ListOverdue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]domain.Dispute, error) {
	const op = "postgres.DisputeRepo.ListOverdue"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+disputeColumns+`
		   FROM disputes
		  WHERE status = $1 AND auto_resolve_at <= $2
		  ORDER BY auto_resolve_at
		  LIMIT $3`,
		domain.DisputeOpen, now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

const disputeColumns = `id, booking_id, reporter_id, kind, description,
	evidence_refs, status, resolution, auto_resolve_at, created_at, resolved_at`

func scanDispute(row pgx.Row) (*domain.Dispute, error) {
	var d domain.Dispute
	err := row.Scan(
		&d.ID, &d.BookingID, &d.ReporterID, &d.Kind, &d.Description,
		&d.EvidenceRefs, &d.Status, &d.Resolution, &d.AutoResolveAt,
		&d.CreatedAt, &d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
