// Package optimizer assigns coaches from a roster to computed sessions.
//
// A solve is a bounded local search: a greedy construction followed by
// simulated annealing over add, remove, reassign, shift and swap moves. Every
// state the search visits satisfies the hard constraints (availability, daily
// cap, no double booking, break rule); coverage is a weighted penalty unless
// strict coverage is requested.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/logger"
	"github.com/okian/coachplan/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Role tags beyond the category baseline roles.
const (
	RoleSupport       = "Support"
	rolePrivatePrefix = "Private "
)

// Coverage reports the staffing of one session.
type Coverage struct {
	Session      model.SessionRef
	Category     string
	Required     int
	Assigned     int
	Eligible     int
	Understaffed int
	Overstaffed  int
}

// Breakdown holds the unweighted objective components.
type Breakdown struct {
	Understaffed int
	Overstaffed  int
	Imbalance    float64
	GapHours     float64
	SkillDeficit int
}

// Weighted returns the objective value of b under w.
func (b Breakdown) Weighted(w rules.Weights) float64 {
	return w.Understaffing*float64(b.Understaffed) +
		w.Overstaffing*float64(b.Overstaffed) +
		w.Imbalance*b.Imbalance +
		w.Fragmentation*b.GapHours +
		w.SkillMismatch*float64(b.SkillDeficit)
}

// Result is the best assignment found for one problem.
type Result struct {
	Assignments       []model.Assignment
	Coverage          []Coverage
	Objective         float64
	LowerBound        float64
	Breakdown         Breakdown
	Iterations        int
	Elapsed           time.Duration
	LowerBoundReached bool
	StopReason        string
}

// Solver solves assignment problems under one rule table snapshot. It holds
// no per-solve state and is safe for concurrent use.
type Solver struct {
	table    *rules.Table
	settings Settings
	logger   logger.Logger
}

// NewSolver returns a solver using the optimizer policy of t.
func NewSolver(t *rules.Table, opts ...Option) *Solver {
	s := &Solver{
		table:    t,
		settings: SettingsFromTable(t),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the effective solver policy.
func (s *Solver) Settings() Settings { return s.settings }

// Solve assigns coaches to the sessions of p. It returns within about the
// time budget with the best assignment found, or earlier when ctx is done.
// The budget applies to this one horizon; see SolveByDate for multi-day plans.
// Strict coverage turns any understaffing into an *InfeasibleError.
func (s *Solver) Solve(ctx context.Context, p Problem) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	in, err := s.buildInstance(p)
	if err != nil {
		metrics.RecordSolve(metrics.OutcomeFailed, msSince(started), 0)
		return nil, err
	}
	if s.settings.StrictCoverage {
		if reasons := precheck(in); len(reasons) > 0 {
			metrics.RecordSolve(metrics.OutcomeInfeasible, msSince(started), 0)
			return nil, &InfeasibleError{Reasons: reasons}
		}
	}

	out := s.search(ctx, in, started.Add(s.settings.TimeBudget))
	res := s.result(in, out)
	res.Elapsed = time.Since(started)

	fields := []logger.Field{
		logger.Int("sessions", len(in.sessions)),
		logger.Int("coaches", len(in.coaches)),
		logger.Int("assignments", len(res.Assignments)),
		logger.Float64("objective", res.Objective),
		logger.Int("iterations", res.Iterations),
		logger.String("stop", res.StopReason),
		logger.Duration("elapsed", res.Elapsed),
	}

	if s.settings.StrictCoverage && res.Breakdown.Understaffed > 0 {
		var reasons []Reason
		for _, cov := range res.Coverage {
			if cov.Understaffed > 0 {
				reasons = append(reasons, Reason{
					Session:    cov.Session,
					Constraint: ConstraintCoverage,
					Detail: fmt.Sprintf("assigned %d of %d required with %d eligible; daily caps, overlaps or breaks exhaust the rest",
						cov.Assigned, cov.Required, cov.Eligible),
				})
			}
		}
		metrics.RecordSolve(metrics.OutcomeInfeasible, msSince(started), res.Iterations)
		s.logger.Warn(ctx, "strict coverage not met", append(fields, logger.Int("understaffed", res.Breakdown.Understaffed))...)
		return nil, &InfeasibleError{Reasons: reasons}
	}

	outcome := metrics.OutcomeBestEffort
	switch {
	case res.LowerBoundReached:
		outcome = metrics.OutcomeOptimal
	case res.StopReason == StopCancelled:
		outcome = metrics.OutcomeCancelled
	}
	metrics.RecordSolve(outcome, msSince(started), res.Iterations)
	metrics.UpdateSolveQuality(res.Objective, res.Breakdown.Understaffed)
	s.logger.Debug(ctx, "solve finished", fields...)
	return res, nil
}

// precheck finds sessions needing more coaches than are eligible at all.
func precheck(in *instance) []Reason {
	var reasons []Reason
	for i, r := range in.req {
		if e := len(in.eligList[i]); e < r {
			reasons = append(reasons, Reason{
				Session:    in.sessions[i].Ref(),
				Constraint: ConstraintAvailability,
				Detail:     fmt.Sprintf("%d eligible coaches for %d required", e, r),
			})
		}
	}
	return reasons
}

// result rebuilds the best assignment and tags roles.
func (s *Solver) result(in *instance, out searchOutcome) *Result {
	st := newState(in, s.settings.Weights)
	for _, p := range out.best {
		st.add(p.s, p.c)
	}

	b := Breakdown{
		Understaffed: st.under,
		Overstaffed:  st.over,
		SkillDeficit: st.skill,
	}
	for d := range in.dates {
		b.Imbalance += st.imbalance(d)
		for c := range in.coaches {
			b.GapHours += st.gap[c][d]
		}
	}

	res := &Result{
		Objective:         b.Weighted(s.settings.Weights),
		LowerBound:        out.lowerBound,
		Breakdown:         b,
		Iterations:        out.iterations,
		LowerBoundReached: out.stop == StopLowerBound,
		StopReason:        out.stop,
	}
	for i, ses := range in.sessions {
		coaches := make([]int, 0, st.count[i])
		for c := range in.coaches {
			if st.x[i][c] {
				coaches = append(coaches, c)
			}
		}
		sort.Slice(coaches, func(x, y int) bool {
			ca, cb := in.coaches[coaches[x]], in.coaches[coaches[y]]
			if ca.SkillLevel != cb.SkillLevel {
				return ca.SkillLevel > cb.SkillLevel
			}
			return ca.ID < cb.ID
		})
		for k, c := range coaches {
			res.Assignments = append(res.Assignments, model.Assignment{
				Session: ses.Ref(),
				CoachID: in.coaches[c].ID,
				Role:    roleFor(in.cats[i], ses, k),
			})
		}

		cov := Coverage{
			Session:  ses.Ref(),
			Category: ses.Category,
			Required: in.req[i],
			Assigned: st.count[i],
			Eligible: len(in.eligList[i]),
		}
		if cov.Assigned < cov.Required {
			cov.Understaffed = cov.Required - cov.Assigned
		} else {
			cov.Overstaffed = cov.Assigned - cov.Required
		}
		res.Coverage = append(res.Coverage, cov)
	}
	return res
}

// Roles lists the role of every required slot of a session in staffing
// order: category roles for the baseline, then one per private slot.
func Roles(c rules.Category, ses model.Session) []string {
	out := make([]string, 0, ses.Total)
	for k := 0; k < ses.Baseline+ses.Private; k++ {
		out = append(out, roleFor(c, ses, k))
	}
	return out
}

// roleFor tags the k-th coach of a session, strongest first: baseline slots
// take the category roles, then private slots, then support.
func roleFor(c rules.Category, ses model.Session, k int) string {
	switch {
	case k < ses.Baseline:
		return c.Role(k)
	case k < ses.Baseline+ses.Private:
		return fmt.Sprintf("%s%d", rolePrivatePrefix, k-ses.Baseline+1)
	default:
		return RoleSupport
	}
}

// SolveHorizons solves independent problems concurrently, at most
// parallelism at a time (unbounded when not positive). Results line up with
// problems; a failed horizon leaves a nil result and contributes to the
// joined error.
func SolveHorizons(ctx context.Context, s *Solver, problems []Problem, parallelism int) ([]*Result, error) {
	results := make([]*Result, len(problems))
	errs := make([]error, len(problems))
	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, p := range problems {
		g.Go(func() error {
			res, err := s.Solve(ctx, p)
			if err != nil {
				errs[i] = fmt.Errorf("horizon %d: %w", i, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// SolveByDate solves a problem with an explicit horizon directly and splits
// anything else into one problem per date, solved concurrently and merged.
// When the dates need more than one wave of parallelism solves, the time
// budget is divided between the waves so the whole plan still returns within
// about one budget.
func SolveByDate(ctx context.Context, s *Solver, p Problem, parallelism int) (*Result, error) {
	if len(p.Horizon) > 0 {
		return s.Solve(ctx, p)
	}
	parts := SplitByDate(p)
	if len(parts) <= 1 {
		return s.Solve(ctx, p)
	}
	if budget := horizonBudget(s.settings.TimeBudget, len(parts), parallelism); budget != s.settings.TimeBudget {
		per := *s
		per.settings.TimeBudget = budget
		s = &per
	}
	results, err := SolveHorizons(ctx, s, parts, parallelism)
	if err != nil {
		return nil, err
	}
	return Merge(results), nil
}

// horizonBudget splits total across the waves needed to run parts horizons
// with the given parallelism; parallelism <= 0 runs them all at once.
func horizonBudget(total time.Duration, parts, parallelism int) time.Duration {
	if parallelism <= 0 || parts <= parallelism {
		return total
	}
	waves := (parts + parallelism - 1) / parallelism
	return total / time.Duration(waves)
}

// Merge combines the results of independent horizons into one.
func Merge(results []*Result) *Result {
	out := &Result{LowerBoundReached: len(results) > 0}
	for _, r := range results {
		if r == nil {
			out.LowerBoundReached = false
			continue
		}
		out.Assignments = append(out.Assignments, r.Assignments...)
		out.Coverage = append(out.Coverage, r.Coverage...)
		out.Objective += r.Objective
		out.LowerBound += r.LowerBound
		out.Breakdown.Understaffed += r.Breakdown.Understaffed
		out.Breakdown.Overstaffed += r.Breakdown.Overstaffed
		out.Breakdown.Imbalance += r.Breakdown.Imbalance
		out.Breakdown.GapHours += r.Breakdown.GapHours
		out.Breakdown.SkillDeficit += r.Breakdown.SkillDeficit
		out.Iterations += r.Iterations
		if r.Elapsed > out.Elapsed {
			out.Elapsed = r.Elapsed
		}
		out.LowerBoundReached = out.LowerBoundReached && r.LowerBoundReached
		if out.StopReason == "" || r.StopReason != StopLowerBound {
			out.StopReason = r.StopReason
		}
	}
	return out
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
