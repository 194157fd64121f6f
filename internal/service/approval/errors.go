package approval

import "errors"

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrAlreadyDecided      = errors.New("application already decided")
)
