// Package worker runs queued plan jobs through the optimizer and records
// their outcome in the plan store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/coachplan/internal/adapters/mq/queue"
	"github.com/okian/coachplan/internal/adapters/repository"
	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/logger"
	"github.com/okian/coachplan/pkg/metrics"
)

const (
	defaultWorkerCount  = 2
	poolShutdownTimeout = 30 * time.Second
)

// ErrStopped marks plans still queued when the pool shut down.
var ErrStopped = errors.New("service stopped before the plan was solved")

// Queue defines how workers receive jobs. Every worker receives from the
// same queue, so an idle worker picks up the next job.
type Queue interface {
	Dequeue(ctx context.Context) (queue.Job, error)
}

// Planner solves one plan problem under t, the table its requirements were
// computed with; nil means the planner's current table. It returns the
// version of the table the solve ran under.
type Planner interface {
	Plan(ctx context.Context, t *rules.Table, p optimizer.Problem) (*optimizer.Result, string, error)
}

// Releaser forgets a request fingerprint so the request can be resubmitted.
type Releaser interface {
	Release(ctx context.Context, key string)
}

// Store is the part of the plan store workers write to.
type Store interface {
	Get(ctx context.Context, id string) (*types.Plan, error)
	Put(ctx context.Context, p *types.Plan) error
}

// Worker processes plan jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)
	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of an in-process queue.
type InMemoryWorker struct {
	queue   Queue
	planner Planner
	store   Store
	release Releaser
	name    string
	now     func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, planner Planner, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		planner:  planner,
		store:    store,
		name:     "worker",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// Shutdown stops receiving but lets the job in flight finish under ctx.
	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-recvCtx.Done():
		}
	}()

	for recvCtx.Err() == nil {
		j, err := w.queue.Dequeue(recvCtx)
		if err != nil {
			return
		}
		if err := w.process(ctx, j); err != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "plan job failed", logger.String("plan_id", j.PlanID), logger.Error(err))
			w.forget(ctx, j)
		}
	}
}

func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process solves one job. The returned error covers store failures only;
// solve failures are recorded on the plan.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // Job is passed by value for channel semantics
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	plan, err := w.store.Get(ctx, j.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		plan = &types.Plan{
			ID:          j.PlanID,
			Fingerprint: j.Fingerprint,
			Sessions:    len(j.Problem.Sessions),
			Coaches:     len(j.Problem.Coaches),
			CreatedAt:   j.EnqueuedAt,
		}
	} else if err != nil {
		return fmt.Errorf("load plan %s: %w", j.PlanID, err)
	}

	plan.Status = types.PlanRunning
	plan.UpdatedAt = w.now()
	if err := w.store.Put(ctx, plan); err != nil {
		return fmt.Errorf("mark plan %s running: %w", j.PlanID, err)
	}

	res, version, solveErr := w.planner.Plan(ctx, j.Rules, j.Problem)
	if version != "" {
		plan.RuleVersion = version
	}
	plan.Finish(res, solveErr, w.now())
	if plan.Status == types.PlanFailed {
		w.forget(ctx, j)
	}

	fields := []logger.Field{
		logger.String("plan_id", plan.ID),
		logger.String("status", string(plan.Status)),
		logger.Duration("elapsed", time.Since(start)),
	}
	if res != nil {
		fields = append(fields, logger.Float64("objective", res.Objective), logger.Int("understaffed", res.Breakdown.Understaffed))
	}
	if solveErr != nil {
		fields = append(fields, logger.Error(solveErr))
	}
	w.logger.Info(ctx, "plan finished", fields...)

	// the finished plan is stored even when ctx ended the solve
	if err := w.store.Put(context.WithoutCancel(ctx), plan); err != nil {
		return fmt.Errorf("store plan %s: %w", j.PlanID, err)
	}
	return nil
}

// abandon records j as failed with cause without solving it.
func (w *InMemoryWorker) abandon(ctx context.Context, j queue.Job, cause error) error { //nolint:gocritic // Job is passed by value for channel semantics
	ctx = context.WithoutCancel(ctx)
	w.forget(ctx, j)
	plan, err := w.store.Get(ctx, j.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		plan = &types.Plan{ID: j.PlanID, Fingerprint: j.Fingerprint, CreatedAt: j.EnqueuedAt}
	} else if err != nil {
		return fmt.Errorf("load plan %s: %w", j.PlanID, err)
	}
	plan.Finish(nil, cause, w.now())
	if err := w.store.Put(ctx, plan); err != nil {
		return fmt.Errorf("store plan %s: %w", j.PlanID, err)
	}
	return nil
}

// forget releases the request fingerprint of a job that produced no plan.
func (w *InMemoryWorker) forget(ctx context.Context, j queue.Job) { //nolint:gocritic // Job is passed by value for channel semantics
	if w.release != nil && j.Fingerprint != "" {
		w.release.Release(ctx, j.Fingerprint)
	}
}

// Pool manages multiple workers reading one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	// janitor records jobs left behind at shutdown.
	janitor *InMemoryWorker
	logger  logger.Logger
}

// NewPool creates workerCount workers. opts apply to every worker.
func NewPool(workerCount int, q Queue, planner Planner, store Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	janitor := NewInMemoryWorker(q, planner, store, append(opts[:len(opts):len(opts)], WithName("worker-pool"))...)
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		janitor: janitor,
		logger:  janitor.logger,
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, planner, store, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue when it can be closed and waits for workers to
// drain it or for ctx to expire. Jobs still queued then are marked failed
// with ErrStopped so no plan stays queued forever.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	busy := p.Wait(shutdownCtx)
	p.abandonPending(ctx)
	if busy > 0 {
		return fmt.Errorf("%d workers still busy: %w", busy, shutdownCtx.Err())
	}
	return nil
}

// Wait blocks until every worker has returned or ctx is done and reports
// how many are still running.
func (p *Pool) Wait(ctx context.Context) int {
	var busy int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			busy++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return busy
}

func (p *Pool) abandonPending(ctx context.Context) {
	drainer, ok := p.queue.(interface{ Drain() []queue.Job })
	if !ok {
		return
	}
	left := drainer.Drain()
	for _, j := range left {
		if err := p.janitor.abandon(ctx, j, ErrStopped); err != nil {
			p.logger.Error(ctx, "failed to record abandoned plan", logger.String("plan_id", j.PlanID), logger.Error(err))
		}
	}
	if len(left) > 0 {
		p.logger.Warn(ctx, "plans abandoned at shutdown", logger.Int("count", len(left)))
	}
}
