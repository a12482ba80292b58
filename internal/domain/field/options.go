package field

import "github.com/okian/openrpg/pkg/logger"

// Option applies a configuration option to a Field.
type Option func(*options)

type options struct {
	reporter Reporter
	logger   logger.Logger
	equal    any
	decode   any
}

// WithReporter sets the collaborator that receives rejected commits.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithLogger sets a custom logger for the field.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEqual overrides the equality used by the dirty check.
// It is ignored when its type parameter differs from the field's.
func WithEqual[T any](eq func(a, b T) bool) Option {
	return func(o *options) {
		if eq != nil {
			o.equal = eq
		}
	}
}

// WithDecoder overrides how broadcast values are converted to the field type.
func WithDecoder[T any](decode func(any) (T, error)) Option {
	return func(o *options) {
		if decode != nil {
			o.decode = decode
		}
	}
}
