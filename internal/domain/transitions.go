package domain

// Transition triggers recorded in structured logs and notifications.
const (
	TriggerPaymentCaptured = "payment_captured"
	TriggerCompletionSweep = "completion_sweep"
	TriggerReleaseSweep    = "release_sweep"
	TriggerAdminRelease    = "admin_release"
	TriggerDisputeOpened   = "dispute_opened"
	TriggerDisputeResolved = "dispute_resolved"
	TriggerCancellation    = "cancellation"
)

// allowedTransitions is the whitelist of legal (event, payment) pair
// changes. Anything outside this map is a programming error, not a
// runtime condition. The key is the current pair, the value the set
// of pairs it may move to.
var allowedTransitions = map[StatePair][]StatePair{
	{EventPending, PaymentPending}: {
		{EventConfirmed, PaymentPaid},
		{EventCancelled, PaymentRefunded},
	},
	{EventConfirmed, PaymentPending}: {
		{EventConfirmed, PaymentPaid},
		{EventCancelled, PaymentRefunded},
	},
	{EventConfirmed, PaymentPaid}: {
		{EventCompleted, PaymentHeld},
		{EventCancelled, PaymentRefunded},
	},
	{EventCompleted, PaymentHeld}: {
		{EventSettled, PaymentReleased},
		{EventDisputed, PaymentHeld},
	},
	{EventDisputed, PaymentHeld}: {
		{EventSettled, PaymentReleased},
		{EventCancelled, PaymentRefunded},
	},
	// Terminal states.
	{EventSettled, PaymentReleased}:   {},
	{EventCancelled, PaymentRefunded}: {},
}

// CanTransition reports whether moving a booking from one state pair
// to another is whitelisted.
func CanTransition(from, to StatePair) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EntersEscrowWindow reports whether the transition lands in the
// releasable state, which is the only place auto_release_at may be set.
func EntersEscrowWindow(to StatePair) bool {
	return to == StatePair{EventCompleted, PaymentHeld}
}
