package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
)

// ApplicationRepo reads event applications and flips their status on
// an organizer decision. The application rows themselves are owned by
// the application-browsing subsystem.
type ApplicationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ApplicationRepo) With(db DB) *ApplicationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ApplicationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves an application by its ID.
func (r *ApplicationRepo) Get(ctx context.Context, id int64) (*domain.EventApplication, error) {
	const op = "postgres.ApplicationRepo.Get"

	db := r.handle()

	var a domain.EventApplication
	err := db.QueryRow(ctx,
		`SELECT id, artist_id, organizer_id, event_id, event_ends_at,
		        amount_cents, status, organizer_response, decided_at
		   FROM event_applications WHERE id = $1`,
		id,
	).Scan(
		&a.ID, &a.ArtistID, &a.OrganizerID, &a.EventID, &a.EventEndsAt,
		&a.AmountCents, &a.Status, &a.Response, &a.DecidedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &a, nil
}

// SetStatusIf moves an application from one status to another,
// compare-and-swap style, recording the organizer's response.
//
// Returns:
//   - error: repository.ErrConflict if the application exists but is
//     no longer in the expected status.
//   - error: repository.ErrNotFound if the application does not exist.
func (r *ApplicationRepo) SetStatusIf(
	ctx context.Context,
	id int64,
	from, to domain.ApplicationStatus,
	response string,
) error {
	const op = "postgres.ApplicationRepo.SetStatusIf"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE event_applications
		    SET status = $3, organizer_response = $4, decided_at = now()
		  WHERE id = $1 AND status = $2`,
		id, from, to, response,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM event_applications WHERE id = $1)`,
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
