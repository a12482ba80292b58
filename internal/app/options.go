package service

import (
	"github.com/okian/openrpg/internal/adapters/repository"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a store instead of opening the SQLite database at start.
// The service does not close an injected store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
			s.ownsStore = false
		}
	}
}

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber change buffer.
func WithSubscriberBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.subscriberBuffer = n
		}
	}
}

// WithDedupeSize sets how many change IDs are remembered for idempotent writes.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithDiceSeed fixes the dice seed. Zero keeps a random seed.
func WithDiceSeed(seed int64) Option {
	return func(s *Service) {
		s.diceSeed = seed
	}
}

// WithCharacteristicDice sets the die used for characteristic rolls.
func WithCharacteristicDice(cfg sheet.DiceConfig) Option {
	return func(s *Service) {
		if cfg.Faces > 1 {
			s.characteristicDice = cfg
		}
	}
}

// WithSkillDice sets the die used for skill rolls.
func WithSkillDice(cfg sheet.DiceConfig) Option {
	return func(s *Service) {
		if cfg.Faces > 1 {
			s.skillDice = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
