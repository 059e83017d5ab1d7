package service

import (
	"context"

	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/logger"
)

// planner adapts the optimizer to worker.Planner. A job solves under the
// table its sessions were computed with, so a rules swap while it waits in
// the queue is never observed by it.
type planner struct {
	registry    *rules.Registry
	opts        []optimizer.Option
	parallelism int
	logger      logger.Logger
}

// Plan solves a single-day horizon directly and splits anything else into
// one problem per date solved concurrently. A nil t falls back to the
// active table.
func (p *planner) Plan(ctx context.Context, t *rules.Table, prob optimizer.Problem) (*optimizer.Result, string, error) {
	if t == nil {
		t = p.registry.Current()
	}
	solver := optimizer.NewSolver(t, append([]optimizer.Option{optimizer.WithLogger(p.logger)}, p.opts...)...)

	res, err := optimizer.SolveByDate(ctx, solver, prob, p.parallelism)
	return res, t.Version(), err
}
