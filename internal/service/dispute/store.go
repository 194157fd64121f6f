package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
	"github.com/ThisaraGit99/artists-management-core/internal/uow"
)

// Store is the transactional surface the service needs. Do runs fn in
// one transaction: the booking transition, the dispute row and the
// resolution marker commit or roll back together through it.
type Store interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error

	Booking(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Booking, error)
	CreateDispute(ctx context.Context, tx postgresrepo.DB, d *domain.Dispute) error
	Dispute(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Dispute, error)
	ResolveDispute(ctx context.Context, tx postgresrepo.DB, id uuid.UUID, resolution string) error

	OverdueDisputes(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error)
}

// Transitions is the slice of the lifecycle service the disputes use.
type Transitions interface {
	Apply(ctx context.Context, tx postgresrepo.DB, req lifecycle.Request) (*domain.Booking, error)
}

// PGStore adapts the postgres repositories to the Store interface.
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

func (s *PGStore) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	return s.uow.Do(ctx, fn)
}

func (s *PGStore) Booking(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Booking, error) {
	return s.store.Bookings().With(tx).Get(ctx, id)
}

func (s *PGStore) CreateDispute(ctx context.Context, tx postgresrepo.DB, d *domain.Dispute) error {
	return s.store.Disputes().With(tx).Create(ctx, d)
}

func (s *PGStore) Dispute(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Dispute, error) {
	return s.store.Disputes().With(tx).Get(ctx, id)
}

func (s *PGStore) ResolveDispute(
	ctx context.Context,
	tx postgresrepo.DB,
	id uuid.UUID,
	resolution string,
) error {
	return s.store.Disputes().With(tx).ResolveIf(ctx, id, resolution)
}

func (s *PGStore) OverdueDisputes(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	return s.store.Disputes().ListOverdue(ctx, now, limit)
}
