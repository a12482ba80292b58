package broadcast

import "github.com/okian/openrpg/pkg/logger"

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithBuffer sets how many changes each subscriber may fall behind by
// before further changes are dropped for it.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
