package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/ThisaraGit99/artists-management-core/internal/repository"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{
			// The error reaches the retry loop wrapped by repo ops.
			"wrapped serialization failure",
			fmt.Errorf("postgres.BookingRepo.UpdateStateIf:%w", &pgconn.PgError{Code: "40001"}),
			true,
		},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"no rows", pgx.ErrNoRows, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWrapDBErr(t *testing.T) {
	t.Run("no rows maps to not found", func(t *testing.T) {
		err := wrapDBErr("op", pgx.ErrNoRows)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		err := wrapDBErr("op", &pgconn.PgError{Code: "23505"})
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("other errors pass through wrapped", func(t *testing.T) {
		cause := errors.New("boom")
		err := wrapDBErr("op", cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, wrapDBErr("op", nil))
	})
}
