package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
)

// LedgerRepo writes and reads payment_transactions. The table is
// append-only: Append is the only write, there is no update or delete.
type LedgerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Append records one money movement for a booking. Callers run this
// inside the same transaction as the state change that moves the
// money, so the two commit or roll back together.
func (r *LedgerRepo) Append(ctx context.Context, tx *domain.PaymentTransaction) error {
	const op = "postgres.LedgerRepo.Append"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO payment_transactions(
			id, booking_id, kind, cents, fee_cents, net_cents, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.BookingID, tx.Kind, tx.Cents, tx.FeeCents, tx.NetCents, tx.Status,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ListByBooking returns a booking's ledger entries, oldest first.
func (r *LedgerRepo) ListByBooking(
	ctx context.Context,
	bookingID uuid.UUID,
) ([]domain.PaymentTransaction, error) {
	const op = "postgres.LedgerRepo.ListByBooking"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, booking_id, kind, cents, fee_cents, net_cents, status, created_at
		   FROM payment_transactions
		  WHERE booking_id = $1
		  ORDER BY created_at`,
		bookingID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.PaymentTransaction
	for rows.Next() {
		var t domain.PaymentTransaction
		if err := rows.Scan(
			&t.ID, &t.BookingID, &t.Kind, &t.Cents,
			&t.FeeCents, &t.NetCents, &t.Status, &t.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
