package commit

import "errors"

// Sentinel errors for commit dispatching.
var (
	ErrInFlight = errors.New("commit already in flight for field")
	ErrClosed   = errors.New("dispatcher closed")
)
