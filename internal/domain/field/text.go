package field

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/openrpg/internal/domain/model"
)

// Codec converts between a field's typed value and its textual input.
// Default is the value malformed input is coerced to. With SkipEmpty,
// clearing the input and leaving it is not an edit.
type Codec[T any] struct {
	Parse     func(string) (T, error)
	Format    func(T) string
	Default   T
	SkipEmpty bool
}

// NumberCodec accepts decimal text such as item weights.
var NumberCodec = Codec[float64]{Parse: ParseNumber, Format: FormatNumber}

// IntCodec accepts whole numbers such as characteristic values. Empty input is zero.
var IntCodec = Codec[int]{Parse: ParseInt, Format: strconv.Itoa}

// ModifierCodec accepts signed modifiers and renders them with an explicit sign.
// An empty modifier leaves the stored one as it was.
var ModifierCodec = Codec[int]{Parse: ParseModifier, Format: FormatModifier, SkipEmpty: true}

// ParseNumber parses decimal text. Malformed text yields 0 and ErrValidation.
func ParseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrValidation, s)
	}
	return f, nil
}

// FormatNumber renders a number without trailing zeros ("0", "2.5").
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseInt parses whole-number text; empty text is zero.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrValidation, s)
	}
	return n, nil
}

// ParseModifier parses "+3", "3", "-2" or "-0".
func ParseModifier(s string) (int, error) {
	t := strings.TrimPrefix(strings.TrimSpace(s), "+")
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a modifier", ErrValidation, s)
	}
	return n, nil
}

// FormatModifier renders a modifier with its sign; zero is "+0".
func FormatModifier(m int) string {
	if m >= 0 {
		return "+" + strconv.Itoa(m)
	}
	return strconv.Itoa(m)
}

// NormalizeModifier rewrites modifier text to its canonical form.
// Malformed text becomes "+0".
func NormalizeModifier(s string) string {
	m, err := ParseModifier(s)
	if err != nil {
		return FormatModifier(0)
	}
	return FormatModifier(m)
}

// NumberEqual compares two texts by numeric value so "2" and "2.0" are equal.
func NumberEqual(a, b string) bool {
	x, errA := ParseNumber(a)
	y, errB := ParseNumber(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return x == y
}

// Text is a Field edited through free-form text input. Keystrokes update a
// text buffer (and the working value whenever the text parses); Commit
// coerces malformed text to the codec default, rewrites the buffer to the
// canonical rendering and commits the result.
type Text[T comparable] struct {
	mu      sync.Mutex
	field   *Field[T]
	codec   Codec[T]
	text    string
	editing bool
}

// NewText wraps f with textual input handling.
func NewText[T comparable](f *Field[T], codec Codec[T]) *Text[T] {
	return &Text[T]{field: f, codec: codec}
}

// NewNumberText creates a decimal text field.
func NewNumberText(key Key, confirmed float64, c Committer[float64], opts ...Option) *Text[float64] {
	return NewText(New(key, confirmed, c, opts...), NumberCodec)
}

// NewIntText creates a whole-number text field.
func NewIntText(key Key, confirmed int, c Committer[int], opts ...Option) *Text[int] {
	return NewText(New(key, confirmed, c, opts...), IntCodec)
}

// NewModifierText creates a signed modifier text field.
func NewModifierText(key Key, confirmed int, c Committer[int], opts ...Option) *Text[int] {
	return NewText(New(key, confirmed, c, opts...), ModifierCodec)
}

// Field returns the underlying typed field.
func (t *Text[T]) Field() *Field[T] { return t.field }

// EditText records a keystroke.
func (t *Text[T]) EditText(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.field.IsPending() {
		return
	}
	t.text = s
	t.editing = true
	if v, err := t.codec.Parse(s); err == nil {
		t.field.Edit(v)
	}
}

// Text returns what the input should display.
func (t *Text[T]) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.editing {
		return t.text
	}
	return t.codec.Format(t.field.Value())
}

// Commit runs on blur. It reports whether a write was issued.
func (t *Text[T]) Commit(ctx context.Context) bool {
	t.mu.Lock()
	if t.editing && t.codec.SkipEmpty && strings.TrimSpace(t.text) == "" {
		t.field.Edit(t.field.Confirmed())
		t.editing = false
		t.text = ""
		t.mu.Unlock()
		return false
	}
	if t.editing {
		v, err := t.codec.Parse(t.text)
		if err != nil {
			v = t.codec.Default
		}
		t.field.Edit(v)
		t.editing = false
		t.text = ""
	}
	t.mu.Unlock()
	return t.field.Commit(ctx)
}

// Key returns the identity of the underlying field.
func (t *Text[T]) Key() Key { return t.field.Key() }

// Apply folds a broadcast change into the underlying field.
func (t *Text[T]) Apply(ctx context.Context, ch model.Change) (bool, error) {
	return t.field.Apply(ctx, ch)
}

// Close tears down the underlying field.
func (t *Text[T]) Close() { t.field.Close() }
