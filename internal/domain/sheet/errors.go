package sheet

import "errors"

// Sentinel errors for sheet binding and following.
var (
	ErrSubscriptionLost = errors.New("change subscription lost")
	ErrResourceMismatch = errors.New("field belongs to another resource")
	ErrDuplicateField   = errors.New("field already bound")
	ErrAlreadyFollowing = errors.New("sheet already follows its resource")
	ErrClosed           = errors.New("sheet closed")
	ErrInvalidDice      = errors.New("invalid dice config")
)
