// Package cli implements the coachctl commands: batch requirement reports,
// local staffing plans, and plan submission to a running service.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/coachplan/internal/adapters/report"
	"github.com/okian/coachplan/internal/domain/aggregate"
	"github.com/okian/coachplan/internal/domain/calculator"
	"github.com/okian/coachplan/pkg/logger"
)

// Compute reads a sessions CSV, computes every requirement under the rule
// table, writes the daily and weekly CSVs and prints the summary to out.
// Invalid rows are logged and left out; a computation fault aborts the run.
func Compute(ctx context.Context, cfg *ComputeConfig, out io.Writer) (aggregate.Summary, *Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	table, err := loadRules(ctx, cfg.RulesFile)
	if err != nil {
		return aggregate.Summary{}, stats, fmt.Errorf("rule table: %w", err)
	}
	log.Info(ctx, "computing requirements",
		logger.String("sessions", cfg.SessionsFile),
		logger.String("rule_version", table.Version()))

	rows, err := readSessions(ctx, cfg.SessionsFile, cfg.Location, stats)
	if err != nil {
		return aggregate.Summary{}, stats, err
	}

	batch, err := calculator.Process(ctx, table, rows.Inputs,
		calculator.WithParallelism(cfg.Parallelism),
		calculator.WithLogger(log),
	)
	if err != nil {
		return aggregate.Summary{}, stats, err
	}
	for _, e := range batch.Errors {
		log.Warn(ctx, "row rejected", logger.String("file", cfg.SessionsFile),
			logger.Int("line", rows.Lines[e.Row-1]), logger.String("field", e.Field), logger.String("reason", e.Msg))
	}
	stats.RowsRejected += len(batch.Errors)
	stats.Sessions = len(batch.Sessions)

	sum := aggregate.Aggregate(batch.Sessions)
	if cfg.DailyOut != "" {
		if err := writeFile(ctx, cfg.DailyOut, func(w io.Writer) error { return report.WriteDaily(w, sum.Hourly) }); err != nil {
			return sum, stats, err
		}
	}
	if cfg.WeeklyOut != "" {
		if err := writeFile(ctx, cfg.WeeklyOut, func(w io.Writer) error { return report.WriteWeekly(w, sum.Weeks) }); err != nil {
			return sum, stats, err
		}
	}
	if err := report.Summary(out, sum); err != nil {
		return sum, stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "requirements computed",
		logger.Int("rowsRead", stats.RowsRead),
		logger.Int("rowsRejected", stats.RowsRejected),
		logger.Int("sessions", stats.Sessions),
		logger.Int("coachHours", sum.CoachHours),
		logger.Duration("duration", stats.Duration))
	return sum, stats, nil
}
