package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/coachplan/internal/adapters/report"
	"github.com/okian/coachplan/internal/domain/calculator"
	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/pkg/logger"
)

// ErrNoSessions is returned when nothing is left to plan.
var ErrNoSessions = errors.New("no sessions to plan")

// Optimize builds a staffing plan locally: it computes the sessions, reads
// the roster and availability, solves, writes the assignment CSV and prints
// the plan summary to out.
func Optimize(ctx context.Context, cfg *OptimizeConfig, out io.Writer) (*optimizer.Result, *Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	table, err := loadRules(ctx, cfg.RulesFile)
	if err != nil {
		return nil, stats, fmt.Errorf("rule table: %w", err)
	}
	rows, err := readSessions(ctx, cfg.SessionsFile, cfg.Location, stats)
	if err != nil {
		return nil, stats, err
	}
	batch, err := calculator.Process(ctx, table, rows.Inputs,
		calculator.WithParallelism(cfg.Parallelism),
		calculator.WithLogger(log),
	)
	if err != nil {
		return nil, stats, err
	}
	for _, e := range batch.Errors {
		log.Warn(ctx, "row rejected", logger.String("file", cfg.SessionsFile),
			logger.Int("line", rows.Lines[e.Row-1]), logger.String("field", e.Field), logger.String("reason", e.Msg))
	}
	stats.RowsRejected += len(batch.Errors)

	coaches, windows, err := readStaff(cfg.RosterFile, cfg.AvailabilityFile, cfg.Location)
	if err != nil {
		return nil, stats, err
	}

	prob := optimizer.Problem{Sessions: batch.Sessions, Coaches: coaches, Availability: windows}
	if cfg.Date != "" {
		if _, err := time.Parse(model.DateLayout, cfg.Date); err != nil {
			return nil, stats, fmt.Errorf("date %q is not YYYY-MM-DD", cfg.Date)
		}
		prob.Horizon = optimizer.DayHorizon(cfg.Date, prob.Sessions)
		if len(prob.Horizon) == 0 {
			return nil, stats, fmt.Errorf("%w on %s", ErrNoSessions, cfg.Date)
		}
	}
	if len(prob.Sessions) == 0 {
		return nil, stats, ErrNoSessions
	}
	stats.Sessions = len(prob.Sessions)
	stats.Coaches = len(coaches)

	opts := []optimizer.Option{optimizer.WithLogger(log)}
	if cfg.Seed != nil {
		opts = append(opts, optimizer.WithSeed(*cfg.Seed))
	}
	if cfg.Strict != nil {
		opts = append(opts, optimizer.WithStrictCoverage(*cfg.Strict))
	}
	if cfg.TimeBudget > 0 {
		opts = append(opts, optimizer.WithTimeBudget(cfg.TimeBudget))
	}
	solver := optimizer.NewSolver(table, opts...)
	log.Info(ctx, "solving staffing plan",
		logger.Int("sessions", stats.Sessions),
		logger.Int("coaches", stats.Coaches),
		logger.String("date", cfg.Date),
		logger.Duration("timeBudget", solver.Settings().TimeBudget))

	res, err := optimizer.SolveByDate(ctx, solver, prob, cfg.Parallelism)
	if err != nil {
		return nil, stats, err
	}

	if cfg.AssignmentsOut != "" {
		planned := plannedSessions(prob)
		err := writeFile(ctx, cfg.AssignmentsOut, func(w io.Writer) error {
			return report.WriteAssignments(w, table, planned, res.Assignments)
		})
		if err != nil {
			return res, stats, err
		}
	}
	if err := report.PlanSummary(out, res); err != nil {
		return res, stats, err
	}
	stats.Duration = time.Since(stats.StartTime)
	return res, stats, nil
}

// plannedSessions returns the sessions inside the horizon of p.
func plannedSessions(p optimizer.Problem) []model.Session {
	if len(p.Horizon) == 0 {
		return p.Sessions
	}
	in := make(map[int64]bool, len(p.Horizon))
	for _, t := range p.Horizon {
		in[t.Unix()] = true
	}
	var out []model.Session
	for _, s := range p.Sessions {
		if in[s.Start.Unix()] {
			out = append(out, s)
		}
	}
	return out
}
