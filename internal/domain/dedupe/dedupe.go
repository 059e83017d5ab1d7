// Package dedupe tracks plan requests already accepted so that a repeated
// submission maps to the plan it produced the first time.
package dedupe

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

const defaultMaxSize = 50000

// Deduper records request fingerprints and the plan each one produced.
type Deduper interface {
	// Claim atomically looks key up and records planID for it when absent.
	// It returns the plan already recorded for key and true on a repeat,
	// or planID and false when key was newly recorded.
	Claim(ctx context.Context, key, planID string) (string, bool)
	// Release forgets key so the same request can be submitted again.
	// Used when an accepted request could not be enqueued.
	Release(ctx context.Context, key string)
	Size() int64
}

// Fingerprint returns the idempotency key of a canonical request encoding.
func Fingerprint(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest once
// maxSize is reached. maxSize <= 0 keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]entry
	order   []slot // keys in insertion order, oldest at head
	head    int
	seq     uint64
	maxSize int
	size    atomic.Int64
}

type entry struct {
	planID string
	seq    uint64
}

// slot is one insertion; it is stale once its key was released or re-claimed.
type slot struct {
	key string
	seq uint64
}

// Option configures the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of remembered keys; the oldest goes first.
// maxSize <= 0 disables eviction.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) { d.maxSize = maxSize }
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]entry)
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, planID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.seen[key]; ok {
		return existing.planID, true
	}
	d.seq++
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
		d.order = append(d.order, slot{key: key, seq: d.seq})
	}
	d.seen[key] = entry{planID: planID, seq: d.seq}
	d.size.Add(1)
	return planID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; !ok {
		return
	}
	delete(d.seen, key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 { return d.size.Load() }

// evictOldest drops the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for d.head < len(d.order) {
		sl := d.order[d.head]
		d.order[d.head] = slot{}
		d.head++
		if e, ok := d.seen[sl.key]; ok && e.seq == sl.seq {
			delete(d.seen, sl.key)
			d.size.Add(-1)
			break
		}
	}
	if d.head > len(d.order)/2 {
		d.order = append([]slot(nil), d.order[d.head:]...)
		d.head = 0
	}
}
