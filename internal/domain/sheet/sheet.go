// Package sheet is the client-side view of one character sheet: the set of
// fields bound to a resource and the live change stream that keeps them in
// step with other viewers.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/openrpg/internal/adapters/mq/worker"
	"github.com/okian/openrpg/internal/domain/dedupe"
	"github.com/okian/openrpg/internal/domain/field"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

const closeTimeout = 5 * time.Second

// Binding is a field the sheet routes changes to. *field.Field satisfies it.
type Binding interface {
	Key() field.Key
	Apply(ctx context.Context, ch model.Change) (bool, error)
	Close()
}

// Stream is a live subscription to a resource's changes.
type Stream interface {
	Events() <-chan model.Change
	Unsubscribe()
}

// Subscriber opens change streams.
type Subscriber interface {
	Subscribe(ctx context.Context, resourceID string) (Stream, error)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, resourceID string) (Stream, error)

func (f SubscriberFunc) Subscribe(ctx context.Context, resourceID string) (Stream, error) {
	return f(ctx, resourceID)
}

// Sheet owns the fields displayed for one resource.
type Sheet struct {
	resourceID string

	mu     sync.RWMutex
	fields map[string]Binding
	stream Stream
	worker *worker.InMemoryWorker
	done   chan struct{}
	err    error
	closed bool

	dedupe   dedupe.Deduper
	reporter field.Reporter
	logger   logger.Logger
}

// New creates an empty sheet for resourceID.
func New(resourceID string, opts ...Option) *Sheet {
	s := &Sheet{
		resourceID: resourceID,
		fields:     make(map[string]Binding),
		dedupe:     dedupe.NewInMemoryDeduper(),
		logger:     logger.Named("sheet"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.String("resource_id", resourceID))
	return s
}

// ResourceID returns the displayed resource.
func (s *Sheet) ResourceID() string { return s.resourceID }

// Bind registers b so changes for its key reach it.
func (s *Sheet) Bind(b Binding) error {
	k := b.Key()
	if k.ResourceID != s.resourceID {
		return fmt.Errorf("%w: %s", ErrResourceMismatch, k)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.fields[k.Field]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateField, k.Field)
	}
	s.fields[k.Field] = b
	return nil
}

// BindField creates a field for fieldKey on s and binds it.
func BindField[T comparable](s *Sheet, fieldKey string, confirmed T, c field.Committer[T], opts ...field.Option) (*field.Field[T], error) {
	if s.reporter != nil {
		opts = append([]field.Option{field.WithReporter(s.reporter)}, opts...)
	}
	f := field.New(field.Key{ResourceID: s.resourceID, Field: fieldKey}, confirmed, c, opts...)
	if err := s.Bind(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Binding returns the field bound to fieldKey.
func (s *Sheet) Binding(fieldKey string) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.fields[fieldKey]
	return b, ok
}

// Apply routes one change to its field. Changes for other resources,
// unbound fields and already-applied change IDs are ignored.
func (s *Sheet) Apply(ctx context.Context, ch model.Change) (bool, error) {
	if ch.ResourceID != s.resourceID {
		return false, nil
	}
	s.mu.RLock()
	b, ok := s.fields[ch.FieldKey]
	closed := s.closed
	s.mu.RUnlock()
	if closed || !ok {
		return false, nil
	}
	if ch.ID != "" && s.dedupe.SeenAndRecord(ctx, ch.ID) {
		return false, nil
	}

	changed, err := b.Apply(ctx, ch)
	if err != nil {
		if ch.ID != "" {
			s.dedupe.Unrecord(ctx, ch.ID)
		}
		return false, err
	}
	if changed {
		metrics.RecordChangeApplied()
	}
	return changed, nil
}

// streamSource lets a worker drain a Stream.
type streamSource struct{ stream Stream }

func (src streamSource) Dequeue(context.Context) <-chan model.Change { return src.stream.Events() }

// Follow subscribes to the sheet's resource and applies incoming changes in
// order until Close. A stream that ends before Close is reported as
// ErrSubscriptionLost; there is no replay, so the caller should reload.
func (s *Sheet) Follow(ctx context.Context, sub Subscriber) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.stream != nil {
		s.mu.Unlock()
		return ErrAlreadyFollowing
	}
	s.mu.Unlock()

	stream, err := sub.Subscribe(ctx, s.resourceID)
	if err != nil {
		return fmt.Errorf("follow %s: %w", s.resourceID, err)
	}

	w := worker.NewInMemoryWorker(streamSource{stream: stream},
		worker.ApplierFunc(s.Apply),
		worker.WithName("sheet-"+s.resourceID),
		worker.WithLogger(s.logger),
	)
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed || s.stream != nil {
		s.mu.Unlock()
		stream.Unsubscribe()
		if s.closed {
			return ErrClosed
		}
		return ErrAlreadyFollowing
	}
	s.stream = stream
	s.worker = w
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		runErr := w.Run(context.WithoutCancel(ctx))
		if !errors.Is(runErr, worker.ErrSourceClosed) {
			return
		}
		s.mu.Lock()
		closed := s.closed
		if !closed {
			s.err = ErrSubscriptionLost
		}
		s.mu.Unlock()
		if closed {
			return
		}
		s.logger.Warn(ctx, "change stream ended; reload to resync")
		metrics.RecordErrorByComponent("sheet", "subscription_lost")
		if s.reporter != nil {
			s.reporter.Report(ctx, s.resourceID, ErrSubscriptionLost)
		}
	}()
	return nil
}

// Done is closed once following has stopped. It is nil before Follow.
func (s *Sheet) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Err returns ErrSubscriptionLost if the stream ended before Close.
func (s *Sheet) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close unsubscribes and tears down every bound field. Results of commits
// still in flight are ignored.
func (s *Sheet) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stream, w := s.stream, s.worker
	fields := make([]Binding, 0, len(s.fields))
	for _, b := range s.fields {
		fields = append(fields, b)
	}
	s.mu.Unlock()

	if stream != nil {
		stream.Unsubscribe()
	}
	if w != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := w.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
		}
		cancel()
	}
	for _, b := range fields {
		b.Close()
	}
}
