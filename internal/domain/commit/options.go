package commit

import (
	"time"

	"github.com/okian/openrpg/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each remote write. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Dispatcher) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(c *Dispatcher) {
		if l != nil {
			c.logger = l
		}
	}
}
