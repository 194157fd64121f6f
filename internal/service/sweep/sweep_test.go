package sweep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
)

// fakeWorld backs both the candidate scans and the transitions with one
// in-memory booking table, so a sweep's second pass sees the state its
// first pass produced.
type fakeWorld struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*domain.Booking
	ledger   []ledgerRecord

	// transitionErr, when set, is returned by every TryTransition.
	transitionErr error
}

type ledgerRecord struct {
	bookingID uuid.UUID
	intent    lifecycle.LedgerIntent
}

func newFakeWorld(bookings ...*domain.Booking) *fakeWorld {
	w := &fakeWorld{bookings: make(map[uuid.UUID]*domain.Booking)}
	for _, b := range bookings {
		w.bookings[b.ID] = b
	}
	return w
}

func (w *fakeWorld) DueForCompletion(_ context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []domain.Booking
	for _, b := range w.bookings {
		if domain.CompletionDue(b, now) && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (w *fakeWorld) DueForRelease(_ context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []domain.Booking
	for _, b := range w.bookings {
		if domain.ReleaseDue(b, now) && len(out) < limit {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (w *fakeWorld) TryTransition(_ context.Context, req lifecycle.Request) (*domain.Booking, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.transitionErr != nil {
		return nil, w.transitionErr
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

	for _, in := range req.Effects.Ledger {
		w.ledger = append(w.ledger, ledgerRecord{bookingID: b.ID, intent: in})
	}

	copied := *b
	return &copied, nil
}

func (w *fakeWorld) booking(id uuid.UUID) domain.Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.bookings[id]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paidBooking(endsAt time.Time) *domain.Booking {
	return &domain.Booking{
		ID:            uuid.New(),
		ArtistID:      1,
		OrganizerID:   2,
		EventEndsAt:   endsAt,
		TotalCents:    100_000,
		FeeCents:      10_000,
		NetCents:      90_000,
		EventStatus:   domain.EventConfirmed,
		PaymentStatus: domain.PaymentPaid,
	}
}

func heldBooking(releaseAt time.Time) *domain.Booking {
	b := paidBooking(releaseAt.Add(-72 * time.Hour))
	b.EventStatus = domain.EventCompleted
	b.PaymentStatus = domain.PaymentHeld
	b.AutoReleaseAt = &releaseAt
	return b
}

func TestCompletionSweepMovesElapsedEventsIntoEscrow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	over := paidBooking(now.Add(-time.Hour))
	upcoming := paidBooking(now.Add(time.Hour))
	world := newFakeWorld(over, upcoming)

	s := NewCompletion(world, world, nil, nil, nil, testLogger(),
		CompletionConfig{HoldPeriod: 72 * time.Hour})

	rep, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scanned)
	assert.Equal(t, 1, rep.Transitioned)
	assert.Empty(t, rep.Failures)

	got := world.booking(over.ID)
	assert.Equal(t, domain.EventCompleted, got.EventStatus)
	assert.Equal(t, domain.PaymentHeld, got.PaymentStatus)
	require.NotNil(t, got.AutoReleaseAt)
	assert.Equal(t, now.Add(72*time.Hour), *got.AutoReleaseAt)

	// The booking whose event hasn't ended is untouched.
	assert.Equal(t, domain.EventConfirmed, world.booking(upcoming.ID).EventStatus)

	// Entering escrow moves no money.
	assert.Empty(t, world.ledger)
}

func TestCompletionSweepIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	over := paidBooking(now.Add(-time.Hour))
	world := newFakeWorld(over)

	s := NewCompletion(world, world, nil, nil, nil, testLogger(),
		CompletionConfig{HoldPeriod: 72 * time.Hour})

	first, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Transitioned)

	second, err := s.run(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, 0, second.Transitioned)
}

func TestCompletionSweepSwallowsCASConflicts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	over := paidBooking(now.Add(-time.Hour))
	world := newFakeWorld(over)
	world.transitionErr = fmt.Errorf("wrapped: %w", lifecycle.ErrConflict)

	s := NewCompletion(world, world, nil, nil, nil, testLogger(), CompletionConfig{})

	rep, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scanned)
	assert.Equal(t, 0, rep.Transitioned)
	assert.Empty(t, rep.Failures, "a lost race is not a failure")
}

func TestCompletionSweepReportsRealFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	over := paidBooking(now.Add(-time.Hour))
	world := newFakeWorld(over)
	world.transitionErr = fmt.Errorf("connection reset")

	s := NewCompletion(world, world, nil, nil, nil, testLogger(), CompletionConfig{})

	rep, err := s.run(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, over.ID, rep.Failures[0].BookingID)
}

func TestReleaseSweepPaysOutAfterGracePeriod(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	due := heldBooking(now.Add(-time.Minute))
	notYet := heldBooking(now.Add(time.Hour))
	world := newFakeWorld(due, notYet)

	s := NewRelease(world, nil, world, nil, nil, nil, testLogger(), ReleaseConfig{})

	rep, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scanned)
	assert.Equal(t, 1, rep.Transitioned)

	got := world.booking(due.ID)
	assert.Equal(t, domain.EventSettled, got.EventStatus)
	assert.Equal(t, domain.PaymentReleased, got.PaymentStatus)

	require.Len(t, world.ledger, 1)
	assert.Equal(t, due.ID, world.ledger[0].bookingID)
	assert.Equal(t, domain.TxRelease, world.ledger[0].intent.Kind)
	assert.Equal(t, due.TotalCents, world.ledger[0].intent.Cents)

	assert.Equal(t, domain.EventCompleted, world.booking(notYet.ID).EventStatus)
}

func TestReleaseSweepIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	due := heldBooking(now.Add(-time.Minute))
	world := newFakeWorld(due)

	s := NewRelease(world, nil, world, nil, nil, nil, testLogger(), ReleaseConfig{})

	first, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Transitioned)

	second, err := s.run(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scanned)

	// Exactly one release entry despite two passes.
	assert.Len(t, world.ledger, 1)
}

func TestReleaseSweepNeverTouchesDisputedBookings(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	disputed := heldBooking(now.Add(-time.Minute))
	disputed.EventStatus = domain.EventDisputed
	disputed.AutoReleaseAt = nil
	world := newFakeWorld(disputed)

	s := NewRelease(world, nil, world, nil, nil, nil, testLogger(), ReleaseConfig{})

	rep, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Scanned)
	assert.Empty(t, world.ledger)

	got := world.booking(disputed.ID)
	assert.Equal(t, domain.EventDisputed, got.EventStatus)
	assert.Equal(t, domain.PaymentHeld, got.PaymentStatus)
}

type fakeDisputes struct {
	overdue []domain.Dispute
}

func (f *fakeDisputes) ListOverdue(_ context.Context, _ time.Time, limit int) ([]domain.Dispute, error) {
	if len(f.overdue) > limit {
		return f.overdue[:limit], nil
	}
	return f.overdue, nil
}

func TestReleaseSweepSurfacesOverdueDisputes(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	world := newFakeWorld()
	disputes := &fakeDisputes{overdue: []domain.Dispute{
		{ID: uuid.New(), Status: domain.DisputeOpen},
		{ID: uuid.New(), Status: domain.DisputeOpen},
	}}

	s := NewRelease(world, disputes, world, nil, nil, nil, testLogger(), ReleaseConfig{})

	rep, err := s.run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Scanned)
	assert.Equal(t, 2, rep.OverdueDisputes)
}
