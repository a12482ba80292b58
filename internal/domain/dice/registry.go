package dice

import (
	"fmt"
	"sync"
)

// Registry maps resolver keys to rules. Unknown keys resolve to the
// fallback rule, which classifies everything as Normal by default.
type Registry struct {
	mu       sync.RWMutex
	rules    map[string]Rule
	fallback Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:    make(map[string]Rule),
		fallback: Rule{Key: "*", Otherwise: Normal},
	}
}

// DefaultRegistry returns a registry with the d20 and d100 rule sets and
// their branched variants.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range []Rule{
		underRule("20", 20),
		branchedRule("20b"),
		underRule("100", 100),
		branchedRule("100b"),
	} {
		_ = r.Register(rule)
	}
	return r
}

// Register adds or replaces the rule for rule.Key.
func (r *Registry) Register(rule Rule) error {
	if rule.Key == "" {
		return fmt.Errorf("register rule: %w", ErrEmptyKey)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Key] = rule
	return nil
}

// SetFallback replaces the rule used for unknown keys.
func (r *Registry) SetFallback(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = rule
}

// Lookup returns the rule registered under key.
func (r *Registry) Lookup(key string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[key]
	return rule, ok
}

// Resolve returns the rule for key, or the fallback rule.
func (r *Registry) Resolve(key string) Rule {
	if rule, ok := r.Lookup(key); ok {
		return rule
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Keys lists the registered resolver keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	return keys
}
