// Package sweep holds the two time-driven jobs that move bookings
// forward: completion (event over → funds held) and release (grace
// period over → funds paid out). Both read candidate rows and then
// advance each one individually through the lifecycle's
// compare-and-swap, so a concurrent dispute or manual action can never
// be clobbered by a bulk update.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
)

// Store lists sweep candidates. Matching is a snapshot: every
// candidate is re-checked by the CAS at transition time.
type Store interface {
	DueForCompletion(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
	DueForRelease(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
}

// Transitions is the slice of the lifecycle service the sweeps use.
type Transitions interface {
	TryTransition(ctx context.Context, req lifecycle.Request) (*domain.Booking, error)
}

// Report is what a single sweep run hands back to the scheduler.
type Report struct {
	Scanned      int
	Transitioned int
	Failures     []Failure

	// OverdueDisputes counts open disputes past their auto-resolve
	// deadline. Only the release sweep fills it in: a frozen booking
	// never shows up in its scan, so this is where a stuck queue
	// becomes visible.
	OverdueDisputes int
}

type Failure struct {
	BookingID uuid.UUID
	Err       string
}

// Every runs fn on a fixed interval until the context is cancelled.
// One run happens immediately so a fresh deploy doesn't wait a full
// interval to catch up.
func Every(
	ctx context.Context,
	logger *slog.Logger,
	name string,
	interval time.Duration,
	fn func(ctx context.Context) error,
) error {
	if err := fn(ctx); err != nil {
		logger.Error("periodic job failed", "job", name, "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Error("periodic job failed", "job", name, "error", err)
			}
		}
	}
}
