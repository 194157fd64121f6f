package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	postgres "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// Transactions default to serializable, so serialization and deadlock
// aborts are expected under contention. The whole transaction rolled
// back, which makes re-running fn from scratch safe.
const txAttempts = 3

// DoWithOpts runs fn inside the transaction with the given options,
// retrying serialization failures. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	var (
		hooks []AfterCommit
		err   error
	)

	for attempt := 1; ; attempt++ {
		hooks = hooks[:0]

		err = u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil || attempt >= txAttempts || !postgres.IsRetryable(err) {
			break
		}
	}
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
