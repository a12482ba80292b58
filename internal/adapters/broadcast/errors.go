package broadcast

import "errors"

// Sentinel errors for the broadcast hub.
var (
	ErrClosed        = errors.New("broadcast hub closed")
	ErrEmptyResource = errors.New("resource id must not be empty")
)
