// Package commit delivers field commits to the remote persistence service.
package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/openrpg/internal/domain/field"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

const defaultTimeout = 10 * time.Second

// Writer persists one field value and returns the value the server stored,
// which may be normalized. A non-nil error means the write did not happen.
type Writer interface {
	Write(ctx context.Context, resourceID, fieldKey string, value any) (any, error)
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, resourceID, fieldKey string, value any) (any, error)

func (f WriterFunc) Write(ctx context.Context, resourceID, fieldKey string, value any) (any, error) {
	return f(ctx, resourceID, fieldKey, value)
}

// Dispatcher runs writes off the caller's goroutine and keeps at most one
// write in flight per field key.
type Dispatcher struct {
	writer  Writer
	timeout time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	inflight map[field.Key]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher that writes through w.
func NewDispatcher(w Writer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		writer:   w,
		timeout:  defaultTimeout,
		logger:   logger.Named("commit"),
		inflight: make(map[field.Key]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts the write for key and returns immediately. done is called
// exactly once from the write goroutine with the stored value or the error.
// The write outlives cancellation of ctx so a torn-down view does not abort
// a commit the server may already be applying.
func (d *Dispatcher) Dispatch(ctx context.Context, key field.Key, value any, done func(context.Context, any, error)) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if _, busy := d.inflight[key]; busy {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInFlight, key)
	}
	d.inflight[key] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	metrics.RecordCommit("issued")
	go d.run(context.WithoutCancel(ctx), key, value, done)
	return nil
}

func (d *Dispatcher) run(ctx context.Context, key field.Key, value any, done func(context.Context, any, error)) {
	defer d.wg.Done()

	writeCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	stored, err := d.writer.Write(writeCtx, key.ResourceID, key.Field, value)
	metrics.RecordCommitLatency(float64(time.Since(start).Milliseconds()))

	d.mu.Lock()
	delete(d.inflight, key)
	d.mu.Unlock()

	if err != nil {
		metrics.RecordCommit("rejected")
		d.logger.Warn(ctx, "write failed", logger.String("key", key.String()), logger.Error(err))
		done(ctx, nil, err)
		return
	}
	metrics.RecordCommit("applied")
	if stored == nil {
		stored = value
	}
	done(ctx, stored, nil)
}

// InFlight reports whether a write for key is outstanding.
func (d *Dispatcher) InFlight(key field.Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[key]
	return ok
}

// Close refuses new writes and waits for outstanding ones or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("commit dispatcher close: %w", ctx.Err())
	}
}

// For adapts d to the typed Committer a Field expects. The stored value is
// converted back to T; when it cannot be, the committed value is kept.
func For[T comparable](d *Dispatcher) field.Committer[T] {
	return field.CommitterFunc[T](func(ctx context.Context, key field.Key, value T, done func(context.Context, field.Result[T])) {
		err := d.Dispatch(ctx, key, value, func(ctx context.Context, stored any, err error) {
			if err != nil {
				done(ctx, field.Rejected[T](wrapRejected(err)))
				return
			}
			v, cerr := field.Convert[T](stored)
			if cerr != nil {
				d.logger.Warn(ctx, "stored value not convertible; keeping committed value",
					logger.String("key", key.String()), logger.Error(cerr))
				v = value
			}
			done(ctx, field.Applied(v))
		})
		if err != nil {
			done(ctx, field.Rejected[T](wrapRejected(err)))
		}
	})
}

func wrapRejected(err error) error {
	if errors.Is(err, field.ErrCommitRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", field.ErrCommitRejected, err)
}
