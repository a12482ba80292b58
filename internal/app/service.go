// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/openrpg/internal/adapters/broadcast"
	"github.com/okian/openrpg/internal/adapters/repository"
	"github.com/okian/openrpg/internal/domain/dedupe"
	"github.com/okian/openrpg/internal/domain/dice"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

// Service persists sheet field writes, publishes them to viewers and rolls
// dice.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	ownsStore bool
	hub       *broadcast.Hub
	roller    *dice.Roller
	deduper   dedupe.Deduper

	dbPath             string
	subscriberBuffer   int
	dedupeSize         int
	diceSeed           int64
	characteristicDice sheet.DiceConfig
	skillDice          sheet.DiceConfig

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ownsStore:          true,
		dbPath:             "openrpg.db",
		subscriberBuffer:   64,
		dedupeSize:         4096,
		characteristicDice: sheet.DiceConfig{Faces: 20},
		skillDice:          sheet.DiceConfig{Faces: 100},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and creates the hub and roller.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		st, err := repository.Open(ctx, s.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
		s.ownsStore = true
	}

	s.hub = broadcast.NewHub(broadcast.WithBuffer(s.subscriberBuffer))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	var diceOpts []dice.Option
	if s.diceSeed != 0 {
		diceOpts = append(diceOpts, dice.WithSeed(s.diceSeed))
	}
	s.roller = dice.NewRoller(diceOpts...)

	s.started = true
	s.logger.Info(ctx, "sheet service started",
		logger.String("db_path", s.dbPath),
		logger.Int("subscriber_buffer", s.subscriberBuffer),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("characteristic_dice", s.characteristicDice.String()),
		logger.String("skill_dice", s.skillDice.String()),
	)
	return nil
}

// Stop closes the hub and, when the service opened it, the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.hub.Close()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store", logger.Error(err))
		}
		s.store = nil
	}
	s.started = false
	s.logger.Info(context.Background(), "sheet service stopped")
}

func (s *Service) components() (repository.Store, *broadcast.Hub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.hub, nil
}

// WriteField persists value and, on success, publishes the stored value to
// every subscriber of resourceID.
func (s *Service) WriteField(ctx context.Context, resourceID, fieldKey string, value any) (any, error) {
	return s.WriteChange(ctx, model.NewChange(resourceID, fieldKey, value))
}

// WriteChange is WriteField with a caller-chosen change ID. A replayed ID
// returns the currently stored value without writing or publishing again.
func (s *Service) WriteChange(ctx context.Context, ch model.Change) (any, error) {
	store, hub, err := s.components()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ch.ResourceID) == "" || strings.TrimSpace(ch.FieldKey) == "" {
		return nil, fmt.Errorf("%w: resource id and field are required", ErrInvalidRequest)
	}
	kind := fieldKind(ch.FieldKey)
	start := time.Now()
	defer func() {
		metrics.RecordFieldWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	if ch.ID != "" && s.deduper.SeenAndRecord(ctx, ch.ID) {
		metrics.RecordFieldWrite(kind, "duplicate")
		return store.Read(ctx, ch.ResourceID, ch.FieldKey)
	}

	stored, err := store.Write(ctx, ch.ResourceID, ch.FieldKey, ch.Value)
	if err != nil {
		if ch.ID != "" {
			s.deduper.Unrecord(ctx, ch.ID)
		}
		metrics.RecordFieldWrite(kind, "error")
		return nil, err
	}

	ch.Value = stored
	n := hub.Publish(ctx, ch)
	metrics.RecordFieldWrite(kind, "ok")

	s.logger.Debug(ctx, "field written",
		logger.String("resource_id", ch.ResourceID),
		logger.String("field", ch.FieldKey),
		logger.Int("subscribers", n))
	return stored, nil
}

// ReadField returns the stored value of one field.
func (s *Service) ReadField(ctx context.Context, resourceID, fieldKey string) (any, error) {
	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return store.Read(ctx, resourceID, fieldKey)
}

// Snapshot returns every stored field of resourceID.
func (s *Service) Snapshot(ctx context.Context, resourceID string) (map[string]any, error) {
	store, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return store.Snapshot(ctx, resourceID)
}

// Subscribe registers a viewer of resourceID's changes.
func (s *Service) Subscribe(ctx context.Context, resourceID string) (*broadcast.Subscription, error) {
	_, hub, err := s.components()
	if err != nil {
		return nil, err
	}
	return hub.Subscribe(ctx, resourceID)
}

// Subscriber adapts the service for in-process sheets.
func (s *Service) Subscriber() sheet.Subscriber {
	return sheet.SubscriberFunc(func(ctx context.Context, resourceID string) (sheet.Stream, error) {
		sub, err := s.Subscribe(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		return sub, nil
	})
}

// Roll validates req and rolls it.
func (s *Service) Roll(ctx context.Context, req dice.Request) (dice.Roll, error) {
	s.mu.RLock()
	roller, started := s.roller, s.started
	s.mu.RUnlock()
	if !started {
		return dice.Roll{}, ErrNotStarted
	}
	if err := req.Spec.Check(); err != nil {
		return dice.Roll{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return roller.Roll(ctx, req), nil
}

// RollCharacteristic rolls the configured characteristic die against value.
func (s *Service) RollCharacteristic(ctx context.Context, value int, modifier *int, standalone bool) (dice.Roll, error) {
	return s.Roll(ctx, sheet.CharacteristicRoll(s.characteristicDice, value, modifier, standalone))
}

// RollSkills rolls one configured skill die per skill and pairs each
// outcome with its skill.
func (s *Service) RollSkills(ctx context.Context, skills []sheet.Skill) ([]sheet.SkillOutcome, error) {
	if len(skills) == 0 {
		return nil, fmt.Errorf("%w: no skills selected", ErrInvalidRequest)
	}
	if len(skills) > dice.MaxCount {
		return nil, fmt.Errorf("%w: %d skills selected, at most %d", ErrInvalidRequest, len(skills), dice.MaxCount)
	}
	plan := sheet.SkillRoll(s.skillDice, skills)
	roll, err := s.Roll(ctx, plan.Request)
	if err != nil {
		return nil, err
	}
	return plan.Pair(s.roller.Registry(), roll), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":             s.started,
		"subscriber_buffer":   s.subscriberBuffer,
		"dedupe_size":         s.dedupeSize,
		"characteristic_dice": s.characteristicDice.String(),
		"skill_dice":          s.skillDice.String(),
	}
	if !s.started {
		return stats
	}

	stats["subscribers"] = s.hub.Total()
	stats["dedupe_entries"] = s.deduper.Size()
	n, err := s.store.Count(context.Background())
	if err != nil && !errors.Is(err, repository.ErrClosed) {
		s.logger.Warn(context.Background(), "counting stored fields", logger.Error(err))
	}
	stats["stored_fields"] = n
	metrics.UpdateSubscribers(s.hub.Total())
	return stats
}

func fieldKind(fieldKey string) string {
	if k, err := model.ParseFieldKey(fieldKey); err == nil {
		return k.Kind
	}
	return "unknown"
}
