package sheet

import (
	"github.com/okian/openrpg/internal/domain/dedupe"
	"github.com/okian/openrpg/internal/domain/field"
	"github.com/okian/openrpg/pkg/logger"
)

// Option applies a configuration option to the Sheet.
type Option func(*Sheet)

// WithReporter sets the collaborator that receives a lost subscription.
func WithReporter(r field.Reporter) Option {
	return func(s *Sheet) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithDeduper replaces the change ID window.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Sheet) {
		if d != nil {
			s.dedupe = d
		}
	}
}

// WithLogger sets a custom logger for the sheet.
func WithLogger(l logger.Logger) Option {
	return func(s *Sheet) {
		if l != nil {
			s.logger = l
		}
	}
}
