package dice

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

// Request asks the roller for one roll. Standalone rolls ignore Count and
// the engine modifier and always produce exactly one outcome. PostProcess,
// when set, runs on every outcome after classification.
type Request struct {
	Spec        Spec
	Standalone  bool
	PostProcess PostProcessor
}

// Roll is the result of a request. Outcomes are in generation order so
// callers can pair them positionally with their source entities.
type Roll struct {
	ID       string    `json:"id"`
	Key      string    `json:"resolver_key"`
	Spec     Spec      `json:"spec"`
	Outcomes []Outcome `json:"outcomes"`
	At       time.Time `json:"at"`
}

// Roller produces classified outcomes. It is safe for concurrent use.
type Roller struct {
	mu       sync.Mutex
	rng      *rand.Rand
	seed     int64
	seeded   bool
	registry *Registry
	logger   logger.Logger
}

// NewRoller creates a roller over the default registry.
func NewRoller(opts ...Option) *Roller {
	r := &Roller{
		registry: DefaultRegistry(),
		logger:   logger.Named("dice"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.seeded {
		seed, err := NewSeed()
		if err != nil {
			seed = time.Now().UnixNano()
		}
		r.seed = seed
	}
	r.rng = rand.New(rand.NewSource(r.seed)) //nolint:gosec // game dice, not cryptography
	return r
}

// Registry returns the roller's rule registry.
func (r *Roller) Registry() *Registry { return r.registry }

// Roll resolves req. It panics when req.Spec is invalid.
func (r *Roller) Roll(ctx context.Context, req Request) Roll {
	spec := req.Spec
	spec.Validate()

	key := spec.ResolverKey()
	rule := r.registry.Resolve(key)

	count := spec.Count
	applyMod := spec.HasModifier()
	if req.Standalone {
		count = 1
		applyMod = false
	}

	outcomes := make([]Outcome, count)
	r.mu.Lock()
	for i := range outcomes {
		raw := r.face(spec.Faces)
		if rule.RerollAtMost > 0 && raw <= rule.RerollAtMost {
			raw = r.face(spec.Faces)
		}
		outcomes[i] = Outcome{Raw: raw, Face: raw}
	}
	r.mu.Unlock()

	for i, o := range outcomes {
		if applyMod {
			o.Face = max(1, o.Raw+*spec.Modifier)
		}
		o.Result = Classify(rule, o.Face, spec.Reference)
		if req.PostProcess != nil {
			o = req.PostProcess(o)
		}
		outcomes[i] = o
		metrics.RecordRollOutcome(o.Result.String())
	}
	metrics.RecordRoll(key)

	roll := Roll{
		ID:       ulid.Make().String(),
		Key:      key,
		Spec:     spec,
		Outcomes: outcomes,
		At:       time.Now().UTC(),
	}
	r.logger.Debug(ctx, "rolled",
		logger.String("id", roll.ID),
		logger.String("resolver", key),
		logger.Int("count", count),
		logger.Int("reference", spec.Reference),
	)
	return roll
}

func (r *Roller) face(faces int) int {
	return r.rng.Intn(faces) + 1
}
