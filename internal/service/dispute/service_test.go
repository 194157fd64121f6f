package dispute

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
	"github.com/ThisaraGit99/artists-management-core/internal/uow"
)

// fakeWorld backs the Store and Transitions interfaces with in-memory
// tables, keeping the compare-and-swap semantics of the real lifecycle
// so the race paths stay observable.
type fakeWorld struct {
	bookings map[uuid.UUID]*domain.Booking
	disputes map[uuid.UUID]*domain.Dispute
	ledger   []lifecycle.LedgerIntent

	// applyErr, when set, is returned by Apply before any state change.
	applyErr error
	// createErr, when set, is returned by CreateDispute.
	createErr error
}

func newFakeWorld(bookings ...*domain.Booking) *fakeWorld {
	w := &fakeWorld{
		bookings: make(map[uuid.UUID]*domain.Booking),
		disputes: make(map[uuid.UUID]*domain.Dispute),
	}
	for _, b := range bookings {
		w.bookings[b.ID] = b
	}
	return w
}

func (w *fakeWorld) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit

	err := fn(ctx, nil, func(h uow.AfterCommit) {
		hooks = append(hooks, h)
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

func (w *fakeWorld) Booking(_ context.Context, _ postgresrepo.DB, id uuid.UUID) (*domain.Booking, error) {
	b, ok := w.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (w *fakeWorld) CreateDispute(_ context.Context, _ postgresrepo.DB, d *domain.Dispute) error {
	if w.createErr != nil {
		return w.createErr
	}
	for _, existing := range w.disputes {
		if existing.BookingID == d.BookingID && existing.Status == domain.DisputeOpen {
			return repository.ErrOpenDisputeExists
		}
	}
	copied := *d
	w.disputes[d.ID] = &copied
	return nil
}

func (w *fakeWorld) Dispute(_ context.Context, _ postgresrepo.DB, id uuid.UUID) (*domain.Dispute, error) {
	d, ok := w.disputes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (w *fakeWorld) ResolveDispute(_ context.Context, _ postgresrepo.DB, id uuid.UUID, resolution string) error {
	d, ok := w.disputes[id]
	if !ok {
		return repository.ErrNotFound
	}
	if d.Status != domain.DisputeOpen {
		return repository.ErrConflict
	}
	d.Status = domain.DisputeResolved
	d.Resolution = &resolution
	return nil
}

func (w *fakeWorld) OverdueDisputes(_ context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	var out []domain.Dispute
	for _, d := range w.disputes {
		if d.Status == domain.DisputeOpen && !d.AutoResolveAt.After(now) && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (w *fakeWorld) Apply(
	_ context.Context,
	_ postgresrepo.DB,
	req lifecycle.Request,
) (*domain.Booking, error) {
	if w.applyErr != nil {
		return nil, w.applyErr
	}

	b, ok := w.bookings[req.BookingID]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	if b.State() != req.From {
		return nil, fmt.Errorf("fake cas miss: %w", lifecycle.ErrConflict)
	}

	b.EventStatus = req.To.Event
	b.PaymentStatus = req.To.Payment
	b.AutoReleaseAt = req.Effects.AutoReleaseAt
	w.ledger = append(w.ledger, req.Effects.Ledger...)

	copied := *b
	return &copied, nil
}

func (w *fakeWorld) booking(id uuid.UUID) domain.Booking {
	return *w.bookings[id]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(w *fakeWorld) *Service {
	return New(w, w, nil, nil, nil, nil, testLogger(), Config{
		AutoResolveAfter: 7 * 24 * time.Hour,
		PartialRefundBps: 3000,
	})
}

func heldBooking() *domain.Booking {
	releaseAt := time.Now().Add(48 * time.Hour)
	return &domain.Booking{
		ID:            uuid.New(),
		ArtistID:      1,
		OrganizerID:   2,
		TotalCents:    100_000,
		FeeCents:      10_000,
		NetCents:      90_000,
		EventStatus:   domain.EventCompleted,
		PaymentStatus: domain.PaymentHeld,
		AutoReleaseAt: &releaseAt,
	}
}

func openOn(t *testing.T, svc *Service, bookingID uuid.UUID) *domain.Dispute {
	t.Helper()

	d, err := svc.Open(
		context.Background(), bookingID, 2,
		domain.DisputeQuality, "no show", nil, "",
	)
	require.NoError(t, err)
	return d
}

func TestOpenFreezesEscrowedBooking(t *testing.T) {
	b := heldBooking()
	world := newFakeWorld(b)
	svc := testService(world)

	d := openOn(t, svc, b.ID)

	assert.Equal(t, b.ID, d.BookingID)
	assert.Equal(t, domain.DisputeOpen, d.Status)

	got := world.booking(b.ID)
	assert.Equal(t, domain.EventDisputed, got.EventStatus)
	assert.Equal(t, domain.PaymentHeld, got.PaymentStatus)
	assert.Nil(t, got.AutoReleaseAt, "freezing clears the release clock")

	// Freezing moves no money.
	assert.Empty(t, world.ledger)
}

func TestOpenAfterReleaseReturnsAlreadyReleased(t *testing.T) {
	b := heldBooking()
	b.EventStatus = domain.EventSettled
	b.PaymentStatus = domain.PaymentReleased
	b.AutoReleaseAt = nil
	world := newFakeWorld(b)
	svc := testService(world)

	_, err := svc.Open(context.Background(), b.ID, 2, domain.DisputeQuality, "late", nil, "")
	assert.ErrorIs(t, err, ErrAlreadyReleased)
	assert.Empty(t, world.disputes)
}

func TestOpenLosesSwapRaceToRelease(t *testing.T) {
	// The booking still reads as escrowed, but the release wins the
	// swap between the read and the transition.
	b := heldBooking()
	world := newFakeWorld(b)
	world.applyErr = fmt.Errorf("wrapped: %w", lifecycle.ErrConflict)
	svc := testService(world)

	_, err := svc.Open(context.Background(), b.ID, 2, domain.DisputeQuality, "late", nil, "")
	assert.ErrorIs(t, err, ErrAlreadyReleased)
	assert.Empty(t, world.disputes, "losing the race creates no dispute")
}

func TestOpenTwiceReturnsOpenDisputeExists(t *testing.T) {
	b := heldBooking()
	world := newFakeWorld(b)
	svc := testService(world)

	openOn(t, svc, b.ID)

	_, err := svc.Open(context.Background(), b.ID, 1, domain.DisputeQuality, "me too", nil, "")
	assert.ErrorIs(t, err, ErrOpenDisputeExists)
	assert.Len(t, world.disputes, 1)
}

func TestOpenMapsUniqueIndexHitToOpenDisputeExists(t *testing.T) {
	// Two opens race past the state read; the partial unique index
	// rejects the second insert.
	b := heldBooking()
	world := newFakeWorld(b)
	world.createErr = repository.ErrOpenDisputeExists
	svc := testService(world)

	_, err := svc.Open(context.Background(), b.ID, 2, domain.DisputeQuality, "late", nil, "")
	assert.ErrorIs(t, err, ErrOpenDisputeExists)
}

func TestOpenOutsideEscrowWindow(t *testing.T) {
	b := heldBooking()
	b.EventStatus = domain.EventConfirmed
	b.PaymentStatus = domain.PaymentPaid
	b.AutoReleaseAt = nil
	world := newFakeWorld(b)
	svc := testService(world)

	_, err := svc.Open(context.Background(), b.ID, 2, domain.DisputeQuality, "early", nil, "")
	assert.ErrorIs(t, err, ErrNotDisputable)
}

func TestOpenUnknownBooking(t *testing.T) {
	svc := testService(newFakeWorld())

	_, err := svc.Open(context.Background(), uuid.New(), 2, domain.DisputeQuality, "x", nil, "")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestResolveFavorArtistReleasesEverything(t *testing.T) {
	b := heldBooking()
	world := newFakeWorld(b)
	svc := testService(world)

	d := openOn(t, svc, b.ID)

	err := svc.Resolve(context.Background(), d.ID, domain.FavorArtist, "evidence checked")
	require.NoError(t, err)

	got := world.booking(b.ID)
	assert.Equal(t, domain.EventSettled, got.EventStatus)
	assert.Equal(t, domain.PaymentReleased, got.PaymentStatus)

	require.Len(t, world.ledger, 1)
	assert.Equal(t, domain.TxRelease, world.ledger[0].Kind)
	assert.Equal(t, b.TotalCents, world.ledger[0].Cents)

	stored := world.disputes[d.ID]
	assert.Equal(t, domain.DisputeResolved, stored.Status)
	require.NotNil(t, stored.Resolution)
	assert.Equal(t, "favor_artist: evidence checked", *stored.Resolution)
}

func TestResolvePartialRefundSplitsTheTotal(t *testing.T) {
	b := heldBooking()
	world := newFakeWorld(b)
	svc := testService(world)

	d := openOn(t, svc, b.ID)

	err := svc.Resolve(context.Background(), d.ID, domain.PartialRefund, "")
	require.NoError(t, err)

	require.Len(t, world.ledger, 2)
	assert.Equal(t, domain.TxRelease, world.ledger[0].Kind)
	assert.Equal(t, int64(70_000), world.ledger[0].Cents)
	assert.Equal(t, domain.TxRefund, world.ledger[1].Kind)
	assert.Equal(t, int64(30_000), world.ledger[1].Cents)
}

func TestResolveTwiceReturnsAlreadyResolved(t *testing.T) {
	b := heldBooking()
	world := newFakeWorld(b)
	svc := testService(world)

	d := openOn(t, svc, b.ID)

	require.NoError(t, svc.Resolve(context.Background(), d.ID, domain.FavorArtist, ""))

	err := svc.Resolve(context.Background(), d.ID, domain.FullRefund, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	// The first decision's money movements stand alone.
	assert.Len(t, world.ledger, 1)
}

func TestResolveLosesSwapRaceToConcurrentResolve(t *testing.T) {
	b := heldBooking()
	world := newFakeWorld(b)
	svc := testService(world)

	d := openOn(t, svc, b.ID)
	world.applyErr = fmt.Errorf("wrapped: %w", lifecycle.ErrConflict)

	err := svc.Resolve(context.Background(), d.ID, domain.FavorArtist, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolveUnknownDispute(t *testing.T) {
	svc := testService(newFakeWorld())

	err := svc.Resolve(context.Background(), uuid.New(), domain.FavorArtist, "")
	assert.ErrorIs(t, err, ErrDisputeNotFound)
}
