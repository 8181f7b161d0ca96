// Package dedupe remembers idempotency keys and the result recorded for them.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// defaultMaxSize bounds the key cache when no option is given.
const defaultMaxSize = 10_000

// Deduper tracks idempotency keys for requests that must take effect once.
//
// A key moves through two states: claimed by SeenAndRecord (no result yet)
// and resolved by Resolve. A failed request calls Unrecord so the key can be
// retried.
type Deduper interface {
	// SeenAndRecord atomically claims key if it is new and returns ("", false).
	// If key was already claimed it returns the recorded result and true; the
	// result is "" while the first request is still in flight.
	SeenAndRecord(ctx context.Context, key string) (string, bool)

	// Resolve stores the result produced for a claimed key.
	Resolve(ctx context.Context, key, result string)

	// Unrecord drops a key so the request can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key    string
	result string
}

// inMemoryDeduper keeps keys in insertion order. Bounded instances evict the
// oldest key once full; maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.keys = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		return el.Value.(*entry).result, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.keys[key] = d.order.PushFront(&entry{key: key})
	d.size.Add(1)
	return "", false
}

func (d *inMemoryDeduper) Resolve(_ context.Context, key, result string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		el.Value.(*entry).result = result
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.order.Remove(el)
		delete(d.keys, key)
		d.size.Add(-1)
	}
}

// evictOldest drops the least recently claimed key. Caller holds d.mu.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.keys, el.Value.(*entry).key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
