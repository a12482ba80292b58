// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/openrpg/internal/domain/sheet"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// SubscriberBuffer bounds each viewer's pending change queue.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// DedupeSize is how many change IDs are remembered for idempotent writes.
	DedupeSize int `koanf:"dedupe_size"`

	// CommitTimeoutMS bounds a single remote commit made by clients.
	CommitTimeoutMS int `koanf:"commit_timeout_ms"`

	// MetricsIntervalMS is how often the server samples gauges.
	MetricsIntervalMS int `koanf:"metrics_interval_ms"`

	// DiceSeed fixes the dice sequence; zero seeds randomly.
	DiceSeed int64 `koanf:"dice_seed"`

	CharacteristicDice sheet.DiceConfig `koanf:"characteristic_dice"`
	SkillDice          sheet.DiceConfig `koanf:"skill_dice"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DBPath:             "openrpg.db",
		SubscriberBuffer:   64,
		DedupeSize:         4096,
		CommitTimeoutMS:    10_000,
		MetricsIntervalMS:  10_000,
		CharacteristicDice: sheet.DiceConfig{Faces: 20},
		SkillDice:          sheet.DiceConfig{Faces: 100},
	}
}

// CommitTimeout returns CommitTimeoutMS as a duration.
func (c *Config) CommitTimeout() time.Duration {
	return time.Duration(c.CommitTimeoutMS) * time.Millisecond
}

// MetricsInterval returns MetricsIntervalMS as a duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.SubscriberBuffer < 1:
		return fmt.Errorf("%w: subscriber_buffer must be positive", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.CommitTimeoutMS < 1:
		return fmt.Errorf("%w: commit_timeout_ms must be positive", ErrInvalidConfig)
	case c.MetricsIntervalMS < 1:
		return fmt.Errorf("%w: metrics_interval_ms must be positive", ErrInvalidConfig)
	case c.CharacteristicDice.Faces < 2:
		return fmt.Errorf("%w: characteristic_dice.faces must be at least 2", ErrInvalidConfig)
	case c.SkillDice.Faces < 2:
		return fmt.Errorf("%w: skill_dice.faces must be at least 2", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
