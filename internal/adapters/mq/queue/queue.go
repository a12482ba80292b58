// Package queue provides the bounded buffer that sits between the change
// hub and one subscriber. Enqueue never blocks, so a slow subscriber loses
// changes instead of stalling the publisher.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/metrics"
)

const defaultQueueCapacity = 256

// Event is the payload flowing through the queue.
type Event = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event without blocking. It returns ErrFull when the
	// buffer is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns the channel events are delivered on. The channel is
	// closed once the queue is closed and drained, or ctx is done.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len() int

	// Close stops accepting events. Buffered events remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool

	once sync.Once
	out  chan Event
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)
	q.out = make(chan Event)
	return q
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		return fmt.Errorf("%w: capacity %d", ErrFull, q.capacity)
	}
}

// Dequeue returns the delivery channel. Every call returns the same
// channel; the forwarding goroutine starts on the first call and stops
// when ctx of that call is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	q.once.Do(func() {
		go func() {
			defer close(q.out)
			for event := range q.events {
				select {
				case q.out <- event:
					metrics.RecordQueueDequeue()
				case <-ctx.Done():
					return
				}
			}
		}()
	})
	return q.out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
