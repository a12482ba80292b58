package client

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus matches every StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ErrTransport marks a request whose reply never arrived intact.
var ErrTransport = errors.New("transport failure")

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server replied %d", e.Status)
	}
	return fmt.Sprintf("server replied %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }
