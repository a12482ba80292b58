// Package broadcast fans committed changes out to every subscriber of the
// affected resource. Delivery is best effort: each subscriber owns a bounded
// buffer, and a full buffer drops the change for that subscriber only.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/openrpg/internal/adapters/mq/queue"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

const defaultBuffer = 64

// Hub routes changes by resource ID.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
	total  int
	closed bool

	buffer int
	logger logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[string]map[uint64]*Subscription),
		buffer: defaultBuffer,
		logger: logger.Named("broadcast"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one consumer of a resource's changes.
type Subscription struct {
	hub        *Hub
	id         uint64
	resourceID string
	q          *queue.InMemoryQueue
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	dropped    atomic.Int64
}

// Subscribe registers a consumer for resourceID. The subscription ends on
// Unsubscribe, when ctx is done, or when the hub closes.
func (h *Hub) Subscribe(ctx context.Context, resourceID string) (*Subscription, error) {
	if resourceID == "" {
		return nil, ErrEmptyResource
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		hub:        h,
		resourceID: resourceID,
		q:          queue.NewInMemoryQueue(queue.WithCapacity(h.buffer)),
		ctx:        sctx,
		cancel:     cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	h.nextID++
	s.id = h.nextID
	if h.subs[resourceID] == nil {
		h.subs[resourceID] = make(map[uint64]*Subscription)
	}
	h.subs[resourceID][s.id] = s
	h.total++
	metrics.UpdateSubscribers(h.total)
	h.mu.Unlock()

	go func() {
		<-sctx.Done()
		s.Unsubscribe()
	}()

	h.logger.Debug(ctx, "subscribed", logger.String("resource_id", resourceID))
	return s, nil
}

// Publish delivers ch to every current subscriber of ch.ResourceID without
// blocking and returns how many subscribers accepted it.
func (h *Hub) Publish(ctx context.Context, ch model.Change) int {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}
	targets := make([]*Subscription, 0, len(h.subs[ch.ResourceID]))
	for _, s := range h.subs[ch.ResourceID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	metrics.RecordChangePublished()
	delivered := 0
	for _, s := range targets {
		err := s.q.Enqueue(ctx, ch)
		switch {
		case err == nil:
			delivered++
			metrics.RecordChangeDelivered()
		case errors.Is(err, queue.ErrFull):
			s.dropped.Add(1)
			metrics.RecordChangeDropped()
			metrics.RecordErrorByComponent("broadcast", "subscriber_full")
			h.logger.Warn(ctx, "subscriber buffer full; change dropped",
				logger.String("resource_id", ch.ResourceID),
				logger.String("change_id", ch.ID),
			)
		case errors.Is(err, queue.ErrClosed):
			// unsubscribed after the snapshot
		default:
			h.logger.Debug(ctx, "change not delivered", logger.Error(err))
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers for resourceID.
func (h *Hub) Subscribers(resourceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[resourceID])
}

// Total returns the number of subscribers across all resources.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Close ends every subscription and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, group := range h.subs {
		for _, s := range group {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Unsubscribe()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.subs[s.resourceID]
	if _, ok := group[s.id]; !ok {
		return
	}
	delete(group, s.id)
	if len(group) == 0 {
		delete(h.subs, s.resourceID)
	}
	h.total--
	metrics.UpdateSubscribers(h.total)
}

// ResourceID returns the subscribed resource.
func (s *Subscription) ResourceID() string { return s.resourceID }

// Events returns the change stream. It is closed after Unsubscribe.
func (s *Subscription) Events() <-chan model.Change {
	return s.q.Dequeue(s.ctx)
}

// Dropped returns how many changes were lost to a full buffer.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Unsubscribe releases the subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
		_ = s.q.Close()
		s.cancel()
	})
}

func (s *Subscription) String() string {
	return fmt.Sprintf("subscription(%s#%d)", s.resourceID, s.id)
}
