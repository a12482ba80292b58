package dedupe

// Option applies a configuration option to the window.
type Option func(*window)

// WithMaxSize sets how many change IDs are remembered.
// If maxSize > 0 the oldest ID is forgotten once the window is full.
// If maxSize <= 0 the window is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *window) {
		d.maxSize = maxSize
	}
}
