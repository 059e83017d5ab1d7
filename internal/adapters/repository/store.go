// Package repository persists plan jobs and their results.
package repository

import (
	"context"
	"sort"

	"github.com/okian/coachplan/internal/domain/types"
)

// PlanStore provides read/write access to plan history.
type PlanStore interface {
	// Put inserts or replaces the plan with p.ID.
	Put(ctx context.Context, p *types.Plan) error

	// Get returns the plan with id.
	// Returns ErrNotFound if the plan is unknown.
	Get(ctx context.Context, id string) (*types.Plan, error)

	// List returns up to limit plans, most recently created first.
	List(ctx context.Context, limit int) ([]*types.Plan, error)

	// Count returns the number of stored plans.
	Count(ctx context.Context) int

	Close() error
}

// newestFirst orders plans by creation time descending, then id.
func newestFirst(plans []*types.Plan) {
	sort.Slice(plans, func(i, j int) bool {
		a, b := plans[i], plans[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func clonePlan(p *types.Plan) *types.Plan {
	c := *p
	c.Reasons = append([]string(nil), p.Reasons...)
	return &c
}
