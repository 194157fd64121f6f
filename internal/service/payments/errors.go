package payments

import "errors"

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrNotPayable       = errors.New("booking is not awaiting payment")
	ErrNotReleasable    = errors.New("booking funds are not releasable")
	ErrNotCancellable   = errors.New("booking can no longer be cancelled")
	ErrAlreadyProcessed = errors.New("booking already processed")
)
