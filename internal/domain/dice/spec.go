// Package dice resolves and classifies tabletop dice rolls.
//
// A Spec names the die, how many to roll, the reference (target) value and
// an optional modifier. Its resolver key ("20", "20b", ...) selects a Rule
// from a Registry; the Rule decides how raw faces are rolled and how each
// adjusted face is classified against the reference.
package dice

import (
	"fmt"
	"strconv"
)

// Bounds on a single roll. Specs outside them are rejected by Check.
const (
	MaxCount = 1000
	MaxFaces = 1000
)

// Spec is an immutable description of a requested roll.
type Spec struct {
	Faces     int  `json:"faces"`
	Count     int  `json:"count"`
	Reference int  `json:"reference"`
	Modifier  *int `json:"modifier,omitempty"`
	Branched  bool `json:"branched"`
}

// Check reports whether the spec can be rolled.
func (s Spec) Check() error {
	if s.Count < 1 || s.Faces < 2 || s.Count > MaxCount || s.Faces > MaxFaces {
		return fmt.Errorf("%w: got %dd%d", ErrInvalidSpec, s.Count, s.Faces)
	}
	return nil
}

// Validate panics when the spec cannot be rolled. Callers that build specs
// from user input should use Check first.
func (s Spec) Validate() {
	if err := s.Check(); err != nil {
		panic(err)
	}
}

// ResolverKey identifies the rule set for this spec: the face count with a
// "b" suffix for branched rolls.
func (s Spec) ResolverKey() string {
	k := strconv.Itoa(s.Faces)
	if s.Branched {
		k += "b"
	}
	return k
}

// HasModifier reports whether a non-zero modifier is set. A zero modifier
// and an absent one are treated alike.
func (s Spec) HasModifier() bool {
	return s.Modifier != nil && *s.Modifier != 0
}

// Mod returns a pointer to m for building specs inline.
func Mod(m int) *int { return &m }

// Reference combines a base value with an optional modifier into a target
// number, floored at 1. A nil modifier leaves base untouched.
func Reference(base int, mod *int) int {
	if mod == nil {
		return base
	}
	return max(1, base+*mod)
}
