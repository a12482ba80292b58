package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrMissingResource = errors.New("missing resource_id")
	ErrMissingField    = errors.New("missing field")
)
