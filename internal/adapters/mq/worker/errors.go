package worker

import "errors"

// ErrSourceClosed is returned by Run when the change stream ends on its own.
var ErrSourceClosed = errors.New("change source closed")
