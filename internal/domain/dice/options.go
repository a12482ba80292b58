package dice

import "github.com/okian/openrpg/pkg/logger"

// Option applies a configuration option to the Roller.
type Option func(*Roller)

// WithSeed makes the roller deterministic. Rollers sharing a seed produce
// the same faces for the same sequence of requests.
func WithSeed(seed int64) Option {
	return func(r *Roller) {
		r.seed = seed
		r.seeded = true
	}
}

// WithRegistry sets the rule registry used to resolve keys.
func WithRegistry(reg *Registry) Option {
	return func(r *Roller) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithLogger sets a custom logger for the roller.
func WithLogger(l logger.Logger) Option {
	return func(r *Roller) {
		if l != nil {
			r.logger = l
		}
	}
}
