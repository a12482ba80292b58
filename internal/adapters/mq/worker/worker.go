// Package worker drains a change stream into an applier, one change at a
// time and in arrival order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

// Event is what workers read off the source.
type Event = model.Change

// Applier folds one change into local state. It reports whether anything
// changed.
type Applier interface {
	Apply(ctx context.Context, e Event) (bool, error)
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, e Event) (bool, error)

func (f ApplierFunc) Apply(ctx context.Context, e Event) (bool, error) { return f(ctx, e) }

// Source defines how workers receive events.
type Source interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes changes from a source.
type Worker interface {
	// Run processes changes until ctx is done, Shutdown is called or the
	// source closes. Only the last case returns an error (ErrSourceClosed).
	Run(ctx context.Context) error

	// Shutdown stops the worker and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker with a single goroutine so changes are
// applied in the order they arrive.
type InMemoryWorker struct {
	source  Source
	applier Applier
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:   source,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) error {
	defer close(w.done)
	metrics.AddWorkerActiveCount(1)
	defer metrics.AddWorkerActiveCount(-1)

	events := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shutdown:
			return nil
		case event, ok := <-events:
			if !ok {
				return ErrSourceClosed
			}
			if err := w.process(ctx, event); err != nil {
				w.logger.Error(ctx, "error applying change", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	changed, err := w.applier.Apply(ctx, event)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply change %s: %w", event.ID, err)
	}
	if changed {
		w.logger.Debug(ctx, "change applied",
			logger.String("change_id", event.ID),
			logger.String("field", event.FieldKey),
		)
	}
	return nil
}
