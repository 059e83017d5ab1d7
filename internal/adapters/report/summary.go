package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/coachplan/internal/domain/aggregate"
	"github.com/okian/coachplan/internal/domain/optimizer"
)

const (
	rule          = 80
	peakHourCount = 3
)

// Summary prints the console summary of a requirements batch.
func Summary(w io.Writer, sum aggregate.Summary) error {
	pw := &printer{w: w}
	bar := strings.Repeat("=", rule)

	pw.printf("\n%s\nCOACHING REQUIREMENTS SUMMARY\n%s\n", bar, bar)
	if sum.Sessions == 0 {
		pw.printf("\nNo sessions.\n\n%s\n", bar)
		return pw.err
	}
	staffed := 0
	for _, d := range sum.Daily {
		staffed += d.StaffedSessions
	}
	pw.printf("\nDate Range: %s to %s\n", sum.From, sum.To)
	pw.printf("Total Sessions: %d\n", sum.Sessions)
	pw.printf("Sessions Needing Coaches: %d\n", staffed)
	pw.printf("Total Coach-Hours Required: %d\n", sum.CoachHours)

	pw.printf("\nPeak Hours:\n")
	for _, h := range aggregate.Peaks(sum.Hourly, peakHourCount) {
		if h.HourlyTotal == 0 {
			continue
		}
		pw.printf("   %s - %d coaches\n", h.Start.Format("2006-01-02 15:04"), h.HourlyTotal)
	}

	pw.printf("\nDaily Breakdown:\n")
	for _, d := range sum.Daily {
		pw.printf("   %s: %d coach-hours across %d sessions\n", d.Date, d.CoachHours, d.Sessions)
	}

	pw.printf("\nBy Session Type:\n")
	for _, c := range sum.Categories {
		pw.printf("   %-12s - %2d sessions, %3d coaches (avg %.1f per session)\n",
			c.Category, c.Sessions, c.CoachHours, c.AvgPerSession)
	}
	pw.printf("\n%s\n", bar)
	return pw.err
}

// PlanSummary prints the headline of an optimizer result.
func PlanSummary(w io.Writer, res *optimizer.Result) error {
	pw := &printer{w: w}
	b := res.Breakdown
	pw.printf("Assignments: %d\n", len(res.Assignments))
	pw.printf("Objective: %.2f (lower bound %.2f, stopped: %s after %d iterations in %s)\n",
		res.Objective, res.LowerBound, res.StopReason, res.Iterations, res.Elapsed.Round(time.Millisecond))
	pw.printf("Understaffed slots: %d, overstaffed: %d, imbalance: %.2f, gap hours: %.2f, skill deficit: %d\n",
		b.Understaffed, b.Overstaffed, b.Imbalance, b.GapHours, b.SkillDeficit)
	for _, c := range res.Coverage {
		if c.Understaffed > 0 {
			pw.printf("   %s %s: %d of %d staffed (%d eligible)\n", c.Session, c.Category, c.Assigned, c.Required, c.Eligible)
		}
	}
	return pw.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
