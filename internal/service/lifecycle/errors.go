package lifecycle

import "errors"

var (
	// ErrInvalidTransition means the requested (from → to) pair is not
	// whitelisted. This is a programming error in the caller, not a
	// runtime condition to retry.
	ErrInvalidTransition = errors.New("transition not allowed")

	// ErrInvalidEffects means the side effects don't fit the
	// transition (missing auto-release date, bad ledger amounts).
	ErrInvalidEffects = errors.New("invalid transition effects")

	// ErrConflict means the compare-and-swap guard failed: the booking
	// was already moved by a concurrent sweep, dispute or admin
	// action. Sweeps swallow it; interactive callers surface it as
	// "already processed".
	ErrConflict = errors.New("booking state changed concurrently")

	ErrNotFound = errors.New("booking not found")
)
