// Package lifecycle is the single authority over a booking's combined
// (event status, payment status) state. Every mutation anywhere in the
// system funnels through TryTransition or Apply; nothing else writes
// booking state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	"github.com/ThisaraGit99/artists-management-core/internal/uow"
)

// LedgerIntent is one money movement to record alongside a transition.
type LedgerIntent struct {
	Kind  domain.TransactionKind
	Cents int64
}

// Effects carries the side fields a transition must apply atomically
// with the state change.
type Effects struct {
	// AutoReleaseAt must be set exactly when the transition enters
	// (event_completed, funds_held); it is written to the row and
	// cleared automatically on any transition leaving that pair.
	AutoReleaseAt *time.Time

	// Ledger entries to append in the same transaction. Empty when the
	// transition moves no money.
	Ledger []LedgerIntent
}

type Request struct {
	BookingID uuid.UUID
	From      domain.StatePair
	To        domain.StatePair
	Trigger   string
	Effects   Effects
}

type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	logger *slog.Logger
}

func New(store *postgresrepo.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

// TryTransition applies one whitelisted state change in its own
// transaction: a compare-and-swap on the booking row plus the ledger
// entries the transition moves, committed together.
//
// Returns:
//   - *domain.Booking: the booking after the transition.
//   - error: lifecycle.ErrConflict if the stored state no longer
//     matches req.From.
//   - error: lifecycle.ErrNotFound if the booking does not exist.
//   - error: lifecycle.ErrInvalidTransition / ErrInvalidEffects on a
//     request outside the whitelist.
func (s *Service) TryTransition(ctx context.Context, req Request) (*domain.Booking, error) {
	const op = "service.lifecycle.TryTransition"

	var b *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		var err error
		b, err = s.Apply(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// Apply performs the transition inside the caller's transaction, so a
// caller can co-commit its own rows (a dispute, an application) with
// the booking state change. The CAS guard and the ledger append share
// the transaction: if the ledger write fails, the state change rolls
// back with it.
func (s *Service) Apply(
	ctx context.Context,
	tx postgresrepo.DB,
	req Request,
) (*domain.Booking, error) {
	const op = "service.lifecycle.Apply"

	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b, err := s.store.Bookings().
		With(tx).
		UpdateStateIf(ctx, req.BookingID, req.From, req.To, req.Effects.AutoReleaseAt)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrNotFound)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%s:%w", op, ErrConflict)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := validateMoney(req.Effects.Ledger, b.TotalCents); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ledger := s.store.Ledger().With(tx)
	for _, intent := range req.Effects.Ledger {
		entry := ledgerEntry(b, intent)
		if err := ledger.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	s.logger.Info("booking transition",
		slog.String("booking_id", b.ID.String()),
		slog.String("from_event", string(req.From.Event)),
		slog.String("from_payment", string(req.From.Payment)),
		slog.String("to_event", string(req.To.Event)),
		slog.String("to_payment", string(req.To.Payment)),
		slog.String("trigger", req.Trigger),
		slog.Int("ledger_entries", len(req.Effects.Ledger)),
	)

	return b, nil
}

func validateRequest(req Request) error {
	if !domain.CanTransition(req.From, req.To) {
		return fmt.Errorf("%w: (%s,%s) -> (%s,%s)",
			ErrInvalidTransition,
			req.From.Event, req.From.Payment,
			req.To.Event, req.To.Payment,
		)
	}

	if domain.EntersEscrowWindow(req.To) {
		if req.Effects.AutoReleaseAt == nil {
			return fmt.Errorf("%w: entering funds_held requires an auto-release date", ErrInvalidEffects)
		}
	} else if req.Effects.AutoReleaseAt != nil {
		return fmt.Errorf("%w: auto-release date outside the escrow window", ErrInvalidEffects)
	}

	return nil
}

func validateMoney(intents []LedgerIntent, totalCents int64) error {
	var sum int64
	for _, in := range intents {
		if in.Cents <= 0 {
			return fmt.Errorf("%w: non-positive ledger amount", ErrInvalidEffects)
		}
		sum += in.Cents
	}
	if sum > totalCents {
		return fmt.Errorf("%w: ledger amounts exceed booking total", ErrInvalidEffects)
	}
	return nil
}

// ledgerEntry builds the transaction row for one intent. Captures and
// releases carry the platform fee prorated to the amount moved, so a
// partial release keeps net + fee equal to the entry amount; refunds
// return money to the organizer, so no fee applies to them.
func ledgerEntry(b *domain.Booking, in LedgerIntent) *domain.PaymentTransaction {
	entry := &domain.PaymentTransaction{
		ID:        uuid.New(),
		BookingID: b.ID,
		Kind:      in.Kind,
		Cents:     in.Cents,
		Status:    "completed",
	}

	switch in.Kind {
	case domain.TxCapture, domain.TxRelease:
		fee := b.FeeCents * in.Cents / b.TotalCents
		entry.FeeCents = fee
		entry.NetCents = in.Cents - fee
	case domain.TxRefund:
		entry.NetCents = in.Cents
	}

	return entry
}
