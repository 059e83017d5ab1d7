package optimizer

import (
	"time"

	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/logger"
)

// Search limits applied on top of the time budget.
const (
	defaultMaxIterations   = 200_000
	defaultStallIterations = 20_000
)

// Settings is the policy one Solver applies to every problem.
type Settings struct {
	TimeBudget       time.Duration
	MaxIterations    int
	StallIterations  int
	StrictCoverage   bool
	DefaultAvailable bool
	Seed             int64
	MaxConsecutive   int // slots; 0 disables the break rule
	DefaultMinBreak  time.Duration
	SessionLength    time.Duration
	Weights          rules.Weights
}

// SettingsFromTable reads the optimizer policy of a rule table.
func SettingsFromTable(t *rules.Table) Settings {
	o := t.Optimizer()
	return Settings{
		TimeBudget:       o.TimeBudget,
		MaxIterations:    defaultMaxIterations,
		StallIterations:  defaultStallIterations,
		StrictCoverage:   o.StrictCoverage,
		DefaultAvailable: o.DefaultAvailable,
		Seed:             o.Seed,
		MaxConsecutive:   o.MaxConsecutiveHours,
		DefaultMinBreak:  o.DefaultMinBreak,
		SessionLength:    t.Operational().SessionLength,
		Weights:          o.Weights,
	}
}

// Option applies a configuration option to the Solver.
type Option func(*Solver)

// WithTimeBudget overrides the wall-clock budget of one solve.
func WithTimeBudget(d time.Duration) Option {
	return func(s *Solver) {
		if d > 0 {
			s.settings.TimeBudget = d
		}
	}
}

// WithSeed overrides the search seed.
func WithSeed(seed int64) Option {
	return func(s *Solver) { s.settings.Seed = seed }
}

// WithMaxIterations bounds the local search iterations.
func WithMaxIterations(n int) Option {
	return func(s *Solver) {
		if n >= 0 {
			s.settings.MaxIterations = n
		}
	}
}

// WithStallIterations stops the search after n iterations without improvement.
func WithStallIterations(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.settings.StallIterations = n
		}
	}
}

// WithStrictCoverage turns residual understaffing into ErrNoFeasibleSolution.
func WithStrictCoverage(strict bool) Option {
	return func(s *Solver) { s.settings.StrictCoverage = strict }
}

// WithLogger sets the solver logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}
