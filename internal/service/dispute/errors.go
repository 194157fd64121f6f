package dispute

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrDisputeNotFound = errors.New("dispute not found")

	// ErrAlreadyReleased is the defined tie-break for the
	// release-vs-dispute race: the release sweep settled the booking
	// before the dispute could land, so no dispute is created.
	ErrAlreadyReleased = errors.New("funds already released")

	ErrOpenDisputeExists = errors.New("booking already has an open dispute")
	ErrNotDisputable     = errors.New("booking is not in the dispute window")
	ErrAlreadyResolved   = errors.New("dispute already resolved")
	ErrUnknownDecision   = errors.New("unknown dispute decision")
	ErrRateLimited       = errors.New("rate limited")
)
