// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/coachplan/internal/adapters/mq/queue"
	"github.com/okian/coachplan/internal/adapters/mq/worker"
	"github.com/okian/coachplan/internal/adapters/repository"
	"github.com/okian/coachplan/internal/domain/aggregate"
	"github.com/okian/coachplan/internal/domain/calculator"
	"github.com/okian/coachplan/internal/domain/dedupe"
	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/logger"
	"github.com/okian/coachplan/pkg/metrics"
)

// stopGrace bounds the wait for cancelled solves during Stop.
const stopGrace = 5 * time.Second

// Service implements the API dependencies for the coaching plan system.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry *rules.Registry
	store    repository.PlanStore
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	calcParallelism int
	rulesPath       string
	dataDir         string
	solverOpts      []optimizer.Option
	now             func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration. The built-in rule
// table is active until Start loads a configured one.
func New(opts ...Option) *Service {
	s := &Service{
		registry:        rules.NewRegistry(rules.MustDefault()),
		workerCount:     2,
		queueSize:       1024,
		dedupeSize:      50_000,
		calcParallelism: runtime.NumCPU(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the rule table, opens the plan store and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting coaching plan service...")

	if s.rulesPath != "" {
		t, err := rules.LoadFile(ctx, s.rulesPath)
		if err != nil {
			metrics.RecordRuleReload("rejected")
			return fmt.Errorf("load rules %s: %w", s.rulesPath, err)
		}
		s.activate(ctx, t)
	}

	if s.store == nil {
		if s.dataDir != "" {
			ps, err := repository.OpenPebbleStore(s.dataDir)
			if err != nil {
				return fmt.Errorf("open plan store: %w", err)
			}
			s.store = ps
			s.logger.Info(ctx, "using pebble plan store", logger.String("dir", s.dataDir))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using in-memory plan store")
		}
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	p := &planner{
		registry:    s.registry,
		opts:        s.solverOpts,
		parallelism: s.calcParallelism,
		logger:      s.logger.Named("optimizer"),
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, p, s.store,
		worker.WithLogger(s.logger),
		worker.WithClock(s.now),
		worker.WithReleaser(s.deduper),
	)
	// solves outlive the caller's ctx; Stop cancels them
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "coaching plan service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("ruleVersion", s.registry.Current().Version()),
	)
	return nil
}

// Stop drains queued plans until ctx expires, then cancels running solves
// and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping coaching plan service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	// cancelled solves still record their best result before the store closes
	graceCtx, done := context.WithTimeout(context.Background(), stopGrace)
	if busy := s.pool.Wait(graceCtx); busy > 0 {
		s.logger.Warn(ctx, "workers still running at store close", logger.Int("busy", busy))
	}
	done()
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close plan store: %w", cerr))
	}

	s.started = false
	s.store = nil
	s.logger.Info(ctx, "coaching plan service stopped")
	return err
}

// Rules returns the active rule table.
func (s *Service) Rules() *rules.Table {
	return s.registry.Current()
}

// ReplaceRules validates a YAML rule table and makes it active. Batches and
// solves already running keep the table they started with.
func (s *Service) ReplaceRules(ctx context.Context, data []byte) (*rules.Table, error) {
	t, err := rules.Parse(data)
	if err != nil {
		metrics.RecordRuleReload("rejected")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}
	s.activate(ctx, t)
	return t, nil
}

func (s *Service) activate(ctx context.Context, t *rules.Table) {
	old := s.registry.Swap(t)
	metrics.RecordRuleReload("applied")
	metrics.RecordRuleTableSwap(len(t.CategoryNames()))
	s.log().Info(ctx, "rule table activated",
		logger.String("version", t.Version()),
		logger.String("previous", old.Version()),
		logger.Int("categories", len(t.CategoryNames())),
	)
}

// ComputeRequirements computes and aggregates a batch of bookings. Invalid
// rows are reported next to the result; only a computation fault fails the
// whole batch.
func (s *Service) ComputeRequirements(ctx context.Context, records []types.SessionRecord) (types.Requirements, error) {
	start := time.Now()
	t := s.registry.Current()
	batch, err := calculator.Process(ctx, t, inputs(records),
		calculator.WithParallelism(s.calcParallelism),
		calculator.WithLogger(s.log()),
	)
	if err != nil {
		return types.Requirements{}, err
	}
	out := types.FromBatch(batch, aggregate.Aggregate(batch.Sessions))
	metrics.RecordCalculationLatency(float64(time.Since(start).Microseconds()) / 1000)
	return out, nil
}

// inputs converts wire records. An unknown side is kept verbatim so the
// calculator reports it against its row.
func inputs(records []types.SessionRecord) []model.SessionInput {
	out := make([]model.SessionInput, len(records))
	for i, r := range records {
		in, err := r.Input()
		if err != nil {
			in = model.SessionInput{
				Start:          r.Start,
				Side:           model.Side(r.Side),
				Category:       r.Category,
				BookedGuests:   r.BookedGuests,
				PrivateLessons: r.PrivateLessons,
			}
		}
		out[i] = in
	}
	return out
}

// SubmitPlan validates a plan request and queues it for solving. A request
// identical to one already accepted under the same rule table returns the
// earlier plan id with duplicate set.
func (s *Service) SubmitPlan(ctx context.Context, req types.PlanRequest) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", false, ErrNotStarted
	}

	t := s.registry.Current()
	prob, err := s.problem(ctx, t, req)
	if err != nil {
		return "", false, err
	}

	data, err := json.Marshal(struct {
		Rules   string            `json:"rules"`
		Request types.PlanRequest `json:"request"`
	}{strconv.FormatUint(t.Fingerprint(), 16), req})
	if err != nil {
		return "", false, fmt.Errorf("fingerprint plan request: %w", err)
	}
	fp := dedupe.Fingerprint(data)

	id, dup := s.deduper.Claim(ctx, fp, uuid.NewString())
	if dup {
		metrics.RecordPlanDuplicate()
		s.logger.Debug(ctx, "duplicate plan request", logger.String("plan_id", id))
		return id, true, nil
	}

	now := s.now()
	plan := &types.Plan{
		ID:          id,
		Status:      types.PlanQueued,
		Fingerprint: fp,
		RuleVersion: t.Version(),
		Date:        req.Date,
		Sessions:    len(prob.Sessions),
		Coaches:     len(prob.Coaches),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Put(ctx, plan); err != nil {
		s.deduper.Release(ctx, fp)
		return "", false, fmt.Errorf("store plan: %w", err)
	}

	err = s.queue.Enqueue(ctx, queue.Job{PlanID: id, Fingerprint: fp, Problem: prob, Rules: t, EnqueuedAt: now})
	if err != nil {
		s.deduper.Release(ctx, fp)
		plan.Finish(nil, err, s.now())
		if perr := s.store.Put(context.WithoutCancel(ctx), plan); perr != nil {
			s.logger.Error(ctx, "failed to record rejected plan", logger.String("plan_id", id), logger.Error(perr))
		}
		return "", false, fmt.Errorf("enqueue plan: %w", err)
	}
	s.logger.Debug(ctx, "plan queued", logger.String("plan_id", id), logger.Int("sessions", plan.Sessions))
	return id, false, nil
}

// problem computes the sessions of req and builds the optimizer input.
func (s *Service) problem(ctx context.Context, t *rules.Table, req types.PlanRequest) (optimizer.Problem, error) {
	if len(req.Coaches) == 0 {
		return optimizer.Problem{}, fmt.Errorf("%w: no coaches", ErrInvalidRequest)
	}
	if req.Date != "" {
		if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
			return optimizer.Problem{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRequest, req.Date)
		}
	}

	batch, err := calculator.Process(ctx, t, inputs(req.Sessions),
		calculator.WithParallelism(s.calcParallelism),
		calculator.WithLogger(s.log()),
	)
	if err != nil {
		return optimizer.Problem{}, err
	}
	if len(batch.Errors) > 0 {
		errs := make([]error, len(batch.Errors))
		for i, e := range batch.Errors {
			errs[i] = e
		}
		return optimizer.Problem{}, fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}

	prob := optimizer.Problem{Sessions: batch.Sessions}
	for _, c := range req.Coaches {
		prob.Coaches = append(prob.Coaches, c.Coach())
	}
	for _, a := range req.Availability {
		prob.Availability = append(prob.Availability, a.Availability())
	}
	if req.Date != "" {
		prob.Horizon = optimizer.DayHorizon(req.Date, prob.Sessions)
		if len(prob.Horizon) == 0 {
			return optimizer.Problem{}, fmt.Errorf("%w: no sessions on %s", ErrInvalidRequest, req.Date)
		}
	}
	return prob, nil
}

// Plan returns the stored plan with id.
func (s *Service) Plan(ctx context.Context, id string) (*types.Plan, error) {
	store, err := s.plans()
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}

// Plans returns up to limit plans, newest first.
func (s *Service) Plans(ctx context.Context, limit int) ([]*types.Plan, error) {
	store, err := s.plans()
	if err != nil {
		return nil, err
	}
	return store.List(ctx, limit)
}

func (s *Service) plans() (repository.PlanStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.registry.Current()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"ruleVersion": t.Version(),
		"ruleSwaps":   s.registry.Swaps(),
	}

	if s.started {
		queueLen := s.queue.Len()
		plans := s.store.Count(context.Background())

		stats["queueLength"] = queueLen
		stats["plansStored"] = plans
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdatePlansStored(plans)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}
