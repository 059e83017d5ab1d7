package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/metrics"
	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps plans in a concurrent map. Plans are copied on the way
// in and out, so callers never share a record with the store.
type MemoryStore struct {
	plans  *xsync.Map[string, *types.Plan]
	closed atomic.Bool
}

// NewMemoryStore returns an empty in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: xsync.NewMap[string, *types.Plan]()}
}

func (s *MemoryStore) Put(_ context.Context, p *types.Plan) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPlan)
	}
	start := time.Now()
	s.plans.Store(p.ID, clonePlan(p))
	metrics.RecordStoreLatency("put", msSince(start))
	metrics.UpdatePlansStored(s.plans.Size())
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*types.Plan, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	p, ok := s.plans.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clonePlan(p), nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*types.Plan, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	out := make([]*types.Plan, 0, s.plans.Size())
	s.plans.Range(func(_ string, p *types.Plan) bool {
		out = append(out, clonePlan(p))
		return true
	})
	newestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	metrics.RecordStoreLatency("list", msSince(start))
	return out, nil
}

func (s *MemoryStore) Count(context.Context) int { return s.plans.Size() }

func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}
