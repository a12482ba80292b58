package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound     = errors.New("field not found")
	ErrInvalidField = errors.New("invalid field key")
	ErrInvalidValue = errors.New("invalid field value")
	ErrClosed       = errors.New("store closed")
)
