package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionAllowed(t *testing.T) {
	allowed := []struct {
		name string
		from StatePair
		to   StatePair
	}{
		{
			"pending booking paid",
			StatePair{EventPending, PaymentPending},
			StatePair{EventConfirmed, PaymentPaid},
		},
		{
			"pending booking cancelled",
			StatePair{EventPending, PaymentPending},
			StatePair{EventCancelled, PaymentRefunded},
		},
		{
			"confirmed unpaid booking paid",
			StatePair{EventConfirmed, PaymentPending},
			StatePair{EventConfirmed, PaymentPaid},
		},
		{
			"confirmed unpaid booking cancelled",
			StatePair{EventConfirmed, PaymentPending},
			StatePair{EventCancelled, PaymentRefunded},
		},
		{
			"paid booking completes into escrow",
			StatePair{EventConfirmed, PaymentPaid},
			StatePair{EventCompleted, PaymentHeld},
		},
		{
			"paid booking cancelled with refund",
			StatePair{EventConfirmed, PaymentPaid},
			StatePair{EventCancelled, PaymentRefunded},
		},
		{
			"held funds released",
			StatePair{EventCompleted, PaymentHeld},
			StatePair{EventSettled, PaymentReleased},
		},
		{
			"held funds disputed",
			StatePair{EventCompleted, PaymentHeld},
			StatePair{EventDisputed, PaymentHeld},
		},
		{
			"dispute resolved for artist",
			StatePair{EventDisputed, PaymentHeld},
			StatePair{EventSettled, PaymentReleased},
		},
		{
			"dispute resolved for organizer",
			StatePair{EventDisputed, PaymentHeld},
			StatePair{EventCancelled, PaymentRefunded},
		},
	}

	for _, tc := range allowed {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, CanTransition(tc.from, tc.to))
		})
	}
}

func TestCanTransitionRejected(t *testing.T) {
	rejected := []struct {
		name string
		from StatePair
		to   StatePair
	}{
		{
			"skip escrow straight to released",
			StatePair{EventConfirmed, PaymentPaid},
			StatePair{EventSettled, PaymentReleased},
		},
		{
			"release without completion",
			StatePair{EventConfirmed, PaymentPending},
			StatePair{EventSettled, PaymentReleased},
		},
		{
			"dispute before escrow",
			StatePair{EventConfirmed, PaymentPaid},
			StatePair{EventDisputed, PaymentHeld},
		},
		{
			"reopen a settled booking",
			StatePair{EventSettled, PaymentReleased},
			StatePair{EventDisputed, PaymentHeld},
		},
		{
			"un-cancel",
			StatePair{EventCancelled, PaymentRefunded},
			StatePair{EventConfirmed, PaymentPaid},
		},
		{
			"self transition",
			StatePair{EventCompleted, PaymentHeld},
			StatePair{EventCompleted, PaymentHeld},
		},
		{
			"unknown source pair",
			StatePair{EventInProgress, PaymentPaid},
			StatePair{EventCompleted, PaymentHeld},
		},
	}

	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	terminals := []StatePair{
		{EventSettled, PaymentReleased},
		{EventCancelled, PaymentRefunded},
	}

	// Exhaustive: no destination at all is reachable from a terminal.
	every := []EventStatus{
		EventPending, EventConfirmed, EventInProgress,
		EventCompleted, EventSettled, EventDisputed, EventCancelled,
	}
	payments := []PaymentStatus{
		PaymentPending, PaymentPaid, PaymentHeld,
		PaymentReleased, PaymentRefunded,
	}

	for _, from := range terminals {
		for _, e := range every {
			for _, p := range payments {
				to := StatePair{Event: e, Payment: p}
				assert.False(t, CanTransition(from, to),
					"terminal (%s,%s) must not reach (%s,%s)",
					from.Event, from.Payment, e, p)
			}
		}
	}
}

func TestEntersEscrowWindow(t *testing.T) {
	assert.True(t, EntersEscrowWindow(StatePair{EventCompleted, PaymentHeld}))
	assert.False(t, EntersEscrowWindow(StatePair{EventDisputed, PaymentHeld}))
	assert.False(t, EntersEscrowWindow(StatePair{EventSettled, PaymentReleased}))
	assert.False(t, EntersEscrowWindow(StatePair{EventConfirmed, PaymentPaid}))
}
