// Package field implements optimistic editing of remote-authoritative scalars.
//
// A Field keeps two values: the confirmed value last known to be durable on
// the server and the working value the user is editing. Edits never touch the
// network; Commit submits the working value through a Committer only when it
// differs from the confirmed one and no other commit is in flight. The result
// either adopts the server's value or rolls the working value back.
package field

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/logger"
)

// State is the synchronization state of a Field.
type State int

const (
	Clean State = iota
	Dirty
	Committing
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Committing:
		return "committing"
	default:
		return "unknown"
	}
}

// Key identifies the persisted scalar a Field mirrors.
type Key struct {
	ResourceID string
	Field      string
}

func (k Key) String() string { return k.ResourceID + "/" + k.Field }

// Result is the outcome of a commit: Applied when Err is nil, Rejected otherwise.
type Result[T any] struct {
	Value T
	Err   error
}

// Applied reports a durable write; v is the server-confirmed value.
func Applied[T any](v T) Result[T] { return Result[T]{Value: v} }

// Rejected reports a declined or undelivered write.
func Rejected[T any](err error) Result[T] {
	if err == nil {
		err = ErrCommitRejected
	}
	return Result[T]{Err: err}
}

// IsApplied reports whether the commit was durably applied.
func (r Result[T]) IsApplied() bool { return r.Err == nil }

// Committer issues the remote write for a field and calls done exactly once
// with the outcome. Commit must not block on the network.
type Committer[T any] interface {
	Commit(ctx context.Context, key Key, value T, done func(context.Context, Result[T]))
}

// CommitterFunc adapts a function to the Committer interface.
type CommitterFunc[T any] func(ctx context.Context, key Key, value T, done func(context.Context, Result[T]))

func (f CommitterFunc[T]) Commit(ctx context.Context, key Key, value T, done func(context.Context, Result[T])) {
	f(ctx, key, value, done)
}

// Reporter receives failures that must be shown to the user.
type Reporter interface {
	Report(ctx context.Context, scope string, err error)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, scope string, err error)

func (f ReporterFunc) Report(ctx context.Context, scope string, err error) { f(ctx, scope, err) }

// Field is the client-side editable view of one persisted scalar.
// All methods are safe for concurrent use.
type Field[T comparable] struct {
	mu        sync.Mutex
	key       Key
	confirmed T
	working   T
	pending   bool
	started   time.Time // when the in-flight commit was issued
	deferred  *T        // server value received while a commit was in flight
	deferAt   time.Time // server commit time of deferred
	closed    bool

	equal     func(a, b T) bool
	decode    func(any) (T, error)
	committer Committer[T]
	reporter  Reporter
	logger    logger.Logger
}

// New creates a clean Field seeded with the server-provided confirmed value.
func New[T comparable](key Key, confirmed T, committer Committer[T], opts ...Option) *Field[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Field[T]{
		key:       key,
		confirmed: confirmed,
		working:   confirmed,
		equal:     func(a, b T) bool { return a == b },
		decode:    Convert[T],
		committer: committer,
		reporter:  o.reporter,
		logger:    o.logger,
	}
	if eq, ok := o.equal.(func(a, b T) bool); ok {
		f.equal = eq
	}
	if dec, ok := o.decode.(func(any) (T, error)); ok {
		f.decode = dec
	}
	if f.logger == nil {
		f.logger = logger.Named("field")
	}
	return f
}

// Key returns the identity of the mirrored scalar.
func (f *Field[T]) Key() Key { return f.key }

// Value returns the working value for rendering.
func (f *Field[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.working
}

// Confirmed returns the last value known to be durable on the server.
func (f *Field[T]) Confirmed() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed
}

// IsPending reports whether a commit is in flight.
func (f *Field[T]) IsPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// IsDirty reports whether the working value differs from the confirmed one.
func (f *Field[T]) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.equal(f.working, f.confirmed)
}

// State returns the current synchronization state.
func (f *Field[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Field[T]) stateLocked() State {
	switch {
	case f.pending:
		return Committing
	case !f.equal(f.working, f.confirmed):
		return Dirty
	default:
		return Clean
	}
}

// Edit sets the working value without any network effect. While a commit is
// in flight the field is read-only and the edit is dropped; the return value
// reports whether the edit was taken.
func (f *Field[T]) Edit(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.pending {
		return false
	}
	f.working = v
	return true
}

// Commit submits the working value if the field is dirty and no commit is
// pending. It reports whether a write was issued.
func (f *Field[T]) Commit(ctx context.Context) bool {
	f.mu.Lock()
	value, ok := f.beginCommitLocked()
	f.mu.Unlock()
	if !ok {
		return false
	}
	f.dispatch(ctx, value)
	return true
}

// Set edits and commits in one step. Boolean toggles use it so the write is
// issued immediately rather than on blur.
func (f *Field[T]) Set(ctx context.Context, v T) bool {
	f.mu.Lock()
	if f.closed || f.pending {
		f.mu.Unlock()
		return false
	}
	f.working = v
	value, ok := f.beginCommitLocked()
	f.mu.Unlock()
	if !ok {
		return false
	}
	f.dispatch(ctx, value)
	return true
}

func (f *Field[T]) beginCommitLocked() (T, bool) {
	var zero T
	if f.closed || f.pending || f.committer == nil {
		return zero, false
	}
	if f.equal(f.working, f.confirmed) {
		return zero, false
	}
	f.pending = true
	f.started = time.Now()
	return f.working, true
}

func (f *Field[T]) dispatch(ctx context.Context, value T) {
	f.logger.Debug(ctx, "committing field", logger.String("key", f.key.String()), logger.Any("value", value))
	f.committer.Commit(ctx, f.key, value, f.Resolve)
}

// Resolve routes a commit outcome back into the field. Applied adopts the
// server value; Rejected restores the confirmed value and reports the error.
// Outcomes arriving after Close or without a pending commit are ignored.
func (f *Field[T]) Resolve(ctx context.Context, r Result[T]) {
	f.mu.Lock()
	if f.closed || !f.pending {
		f.mu.Unlock()
		return
	}
	f.pending = false
	deferred, deferAt := f.deferred, f.deferAt
	f.deferred = nil

	if r.IsApplied() {
		v := r.Value
		// A change committed on the server after this write began
		// supersedes it.
		if deferred != nil && !deferAt.Before(f.started) {
			v = *deferred
		}
		f.confirmed = v
		f.working = v
		f.mu.Unlock()
		return
	}

	if deferred != nil {
		f.confirmed = *deferred
	}
	f.working = f.confirmed
	reporter := f.reporter
	f.mu.Unlock()

	err := r.Err
	if !errors.Is(err, ErrCommitRejected) {
		err = fmt.Errorf("%w: %w", ErrCommitRejected, err)
	}
	f.logger.Warn(ctx, "commit rejected; reverted", logger.String("key", f.key.String()), logger.Error(err))
	if reporter != nil {
		reporter.Report(ctx, f.key.String(), err)
	}
}

// Apply folds a broadcast change into the field. Changes for other keys are
// ignored. A clean field adopts the value outright; a dirty field only moves
// its confirmed value so the local edit wins; a committing field defers the
// value until its own commit resolves, and keeps it then if the change was
// committed after the write began. Applying the same change twice leaves
// the field as the first application did. It reports whether state changed.
func (f *Field[T]) Apply(ctx context.Context, ch model.Change) (bool, error) {
	if ch.ResourceID != f.key.ResourceID || ch.FieldKey != f.key.Field {
		return false, nil
	}
	v, err := f.decode(ch.Value)
	if err != nil {
		return false, fmt.Errorf("apply %s: %w", f.key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, nil
	}

	switch f.stateLocked() {
	case Committing:
		f.deferred = &v
		f.deferAt = ch.At
		return false, nil
	case Dirty:
		if f.equal(f.confirmed, v) {
			return false, nil
		}
		f.confirmed = v
		return true, nil
	default:
		if f.equal(f.confirmed, v) && f.equal(f.working, v) {
			return false, nil
		}
		f.confirmed = v
		f.working = v
		return true, nil
	}
}

// Close tears the field down. Later edits, commits, outcomes and changes are
// ignored.
func (f *Field[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.deferred = nil
}

// Toggle flips a boolean field and commits at once. A rejected write puts
// the pre-toggle value back.
func Toggle(ctx context.Context, f *Field[bool]) bool {
	f.mu.Lock()
	if f.closed || f.pending {
		f.mu.Unlock()
		return false
	}
	f.working = !f.working
	value, ok := f.beginCommitLocked()
	f.mu.Unlock()
	if !ok {
		return false
	}
	f.dispatch(ctx, value)
	return true
}
