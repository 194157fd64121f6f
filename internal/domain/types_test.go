package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		name       string
		totalCents int64
		feeBps     int
		want       int64
	}{
		{"ten percent", 100_000, 1000, 10_000},
		{"rounds down", 999, 1000, 99},
		{"zero total", 0, 1000, 0},
		{"zero rate", 100_000, 0, 0},
		{"full total", 100_000, 10000, 100_000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeFee(tc.totalCents, tc.feeBps))
		})
	}
}

func TestCompletionDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	due := &Booking{
		EventStatus:   EventConfirmed,
		PaymentStatus: PaymentPaid,
		EventEndsAt:   now.Add(-time.Hour),
	}
	assert.True(t, CompletionDue(due, now))

	notOver := *due
	notOver.EventEndsAt = now.Add(time.Hour)
	assert.False(t, CompletionDue(&notOver, now))

	unpaid := *due
	unpaid.PaymentStatus = PaymentPending
	assert.False(t, CompletionDue(&unpaid, now))

	advanced := *due
	advanced.EventStatus = EventCompleted
	advanced.PaymentStatus = PaymentHeld
	assert.False(t, CompletionDue(&advanced, now))
}

func TestReleaseDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	due := &Booking{
		EventStatus:   EventCompleted,
		PaymentStatus: PaymentHeld,
		AutoReleaseAt: &past,
	}
	assert.True(t, ReleaseDue(due, now))

	// Exactly at the deadline counts as due.
	exact := *due
	exact.AutoReleaseAt = &now
	assert.True(t, ReleaseDue(&exact, now))

	early := *due
	early.AutoReleaseAt = &future
	assert.False(t, ReleaseDue(&early, now))

	// A disputed booking is frozen by its state, not by a lock.
	disputed := *due
	disputed.EventStatus = EventDisputed
	assert.False(t, ReleaseDue(&disputed, now))

	noDate := *due
	noDate.AutoReleaseAt = nil
	assert.False(t, ReleaseDue(&noDate, now))
}

func TestHeldStateConsistent(t *testing.T) {
	at := time.Now()

	inWindow := &Booking{
		EventStatus:   EventCompleted,
		PaymentStatus: PaymentHeld,
		AutoReleaseAt: &at,
	}
	assert.True(t, HeldStateConsistent(inWindow))

	// Held funds on a disputed booking: date must be cleared.
	disputed := &Booking{
		EventStatus:   EventDisputed,
		PaymentStatus: PaymentHeld,
	}
	assert.True(t, HeldStateConsistent(disputed))

	disputedWithDate := &Booking{
		EventStatus:   EventDisputed,
		PaymentStatus: PaymentHeld,
		AutoReleaseAt: &at,
	}
	assert.False(t, HeldStateConsistent(disputedWithDate))

	heldTooEarly := &Booking{
		EventStatus:   EventConfirmed,
		PaymentStatus: PaymentHeld,
	}
	assert.False(t, HeldStateConsistent(heldTooEarly))

	windowWithoutDate := &Booking{
		EventStatus:   EventCompleted,
		PaymentStatus: PaymentHeld,
	}
	assert.False(t, HeldStateConsistent(windowWithoutDate))

	released := &Booking{
		EventStatus:   EventSettled,
		PaymentStatus: PaymentReleased,
	}
	assert.True(t, HeldStateConsistent(released))
}

func TestAmountsConsistent(t *testing.T) {
	assert.True(t, AmountsConsistent(&Booking{TotalCents: 100, FeeCents: 10, NetCents: 90}))
	assert.False(t, AmountsConsistent(&Booking{TotalCents: 100, FeeCents: 10, NetCents: 80}))
}
