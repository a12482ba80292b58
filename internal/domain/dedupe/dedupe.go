// Package dedupe tracks applied change IDs so each broadcast change is
// applied at most once per client.
package dedupe

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/openrpg/pkg/metrics"
)

const defaultMaxSize = 4096

// Deduper records seen change IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a change that failed to apply can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// window is a Deduper over a bounded insertion-ordered set.
type window struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
}

// NewInMemoryDeduper creates a deduper remembering the most recent IDs.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &window{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *window) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		metrics.RecordChangeDuplicate()
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[id] = d.order.PushFront(id)
	return false
}

func (d *window) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[id]; ok {
		d.order.Remove(e)
		delete(d.seen, id)
	}
}

func (d *window) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
