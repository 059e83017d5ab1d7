package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/metrics"
)

// planPrefix namespaces plan records; each value is the JSON plan.
const planPrefix = "plan/"

// PebbleStore keeps plan history in a Pebble database so it survives restarts.
type PebbleStore struct {
	db         *pebble.DB
	fs         vfs.FS
	syncWrites bool
	mu         sync.Mutex // serializes puts so count stays exact
	count      atomic.Int64
}

// OpenPebbleStore opens (or creates) the plan database under dir.
func OpenPebbleStore(dir string, opts ...Option) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("pebble store: data dir is required")
	}
	s := &PebbleStore{fs: vfs.Default}
	for _, opt := range opts {
		opt(s)
	}
	db, err := pebble.Open(dir, &pebble.Options{FS: s.fs})
	if err != nil {
		return nil, fmt.Errorf("open plan store %s: %w", dir, err)
	}
	s.db = db

	n, err := s.scan(func([]byte) error { return nil })
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.count.Store(int64(n))
	metrics.UpdatePlansStored(n)
	return s, nil
}

func planKey(id string) []byte { return []byte(planPrefix + id) }

func (s *PebbleStore) writeOptions() *pebble.WriteOptions {
	if s.syncWrites {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *PebbleStore) Put(ctx context.Context, p *types.Plan) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPlan)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("put", msSince(start)) }()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", p.ID, err)
	}
	key := planKey(p.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, closer, err := s.db.Get(key)
	existed := err == nil
	if existed {
		_ = closer.Close()
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("put plan %s: %w", p.ID, err)
	}
	if err := s.db.Set(key, data, s.writeOptions()); err != nil {
		return fmt.Errorf("put plan %s: %w", p.ID, err)
	}
	if !existed {
		metrics.UpdatePlansStored(int(s.count.Add(1)))
	}
	return nil
}

func (s *PebbleStore) Get(ctx context.Context, id string) (*types.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("get", msSince(start)) }()

	val, closer, err := s.db.Get(planKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	defer closer.Close()

	var p types.Plan
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *PebbleStore) List(ctx context.Context, limit int) ([]*types.Plan, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("list", msSince(start)) }()

	var out []*types.Plan
	if _, err := s.scan(func(val []byte) error {
		var p types.Plan
		if err := json.Unmarshal(val, &p); err != nil {
			return fmt.Errorf("decode plan: %w", err)
		}
		out = append(out, &p)
		return nil
	}); err != nil {
		return nil, err
	}
	newestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PebbleStore) Count(context.Context) int { return int(s.count.Load()) }

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// scan calls fn with every plan value and returns how many it visited.
func (s *PebbleStore) scan(fn func(val []byte) error) (int, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(planPrefix),
		UpperBound: []byte("plan0"), // '0' follows '/'
	})
	if err != nil {
		return 0, fmt.Errorf("scan plans: %w", err)
	}
	n := 0
	for it.First(); it.Valid(); it.Next() {
		if err := fn(it.Value()); err != nil {
			_ = it.Close()
			return n, err
		}
		n++
	}
	if err := it.Close(); err != nil {
		return n, fmt.Errorf("scan plans: %w", err)
	}
	return n, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
