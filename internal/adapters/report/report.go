// Package report renders requirements and staffing plans as CSV files and a
// console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/okian/coachplan/internal/domain/aggregate"
	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
)

// Placeholders of the assignment export.
const (
	Unassigned      = "UNASSIGNED"
	NoCoachRequired = "No coaches required"
	noRole          = "N/A"
)

const (
	datetimeLayout = "2006-01-02 15:04:05"
	clockLayout    = "03:04 PM"
)

var weekdays = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// WriteDaily writes one line per hour slot with both sides paired.
func WriteDaily(w io.Writer, hourly []model.CoachRequirement) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"datetime_start", "hour",
		"left_side_coaches", "left_baseline", "left_private",
		"right_side_coaches", "right_baseline", "right_private",
		"hourly_total",
		"left_no_coach_required", "right_no_coach_required",
		"is_peak_hour",
	})
	for _, h := range hourly {
		_ = cw.Write([]string{
			h.Start.Format(datetimeLayout), strconv.Itoa(h.Hour),
			strconv.Itoa(h.LeftTotal), strconv.Itoa(h.LeftBaseline), strconv.Itoa(h.LeftPrivate),
			strconv.Itoa(h.RightTotal), strconv.Itoa(h.RightBaseline), strconv.Itoa(h.RightPrivate),
			strconv.Itoa(h.HourlyTotal),
			strconv.FormatBool(h.LeftNoCoachRequired), strconv.FormatBool(h.RightNoCoachRequired),
			strconv.FormatBool(h.IsPeak),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteWeekly writes the hour-of-day tables of every week, Monday first.
func WriteWeekly(w io.Writer, weeks []aggregate.Week) error {
	cw := csv.NewWriter(w)
	header := append([]string{"week_start", "hour"}, weekdays[:]...)
	_ = cw.Write(append(header, "weekly_total", "avg_per_day"))
	for _, wk := range weeks {
		for _, r := range wk.Rows {
			rec := []string{wk.Start, fmt.Sprintf("%02d:00", r.Hour)}
			for _, n := range r.PerDay {
				rec = append(rec, strconv.Itoa(n))
			}
			rec = append(rec, strconv.Itoa(r.Total), strconv.FormatFloat(r.AvgPerDay, 'f', 1, 64))
			_ = cw.Write(rec)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssignments writes one line per role slot of every session, naming
// the assigned coach or UNASSIGNED. Coaches beyond the requirement are
// listed under their support role; sessions needing nobody get one line.
func WriteAssignments(w io.Writer, t *rules.Table, sessions []model.Session, assignments []model.Assignment) error {
	byRef := make(map[string][]model.Assignment)
	for _, a := range assignments {
		k := a.Session.Key()
		byRef[k] = append(byRef[k], a)
	}
	ordered := append([]model.Session(nil), sessions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Side < b.Side
	})

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Date", "Time", "Session", "Side", "Guests", "Role", "Coach"})
	for _, s := range ordered {
		line := func(role, coach string) {
			_ = cw.Write([]string{
				model.DateOf(s.Start), s.Start.Format(clockLayout), s.Category, string(s.Side),
				strconv.Itoa(s.BookedGuests), role, coach,
			})
		}
		assigned := byRef[s.Ref().Key()]
		if s.Total == 0 && len(assigned) == 0 {
			line(noRole, NoCoachRequired)
			continue
		}
		c, ok := t.Category(s.Category)
		if !ok {
			return fmt.Errorf("session %s: unknown category %q", s.Ref(), s.Category)
		}
		taken := make(map[string][]string, len(assigned))
		for _, a := range assigned {
			taken[a.Role] = append(taken[a.Role], a.CoachID)
		}
		for _, role := range optimizer.Roles(c, s) {
			coach := Unassigned
			if ids := taken[role]; len(ids) > 0 {
				coach, taken[role] = ids[0], ids[1:]
			}
			line(role, coach)
		}
		for _, a := range assigned {
			if ids := taken[a.Role]; len(ids) > 0 && ids[0] == a.CoachID {
				taken[a.Role] = ids[1:]
				line(a.Role, a.CoachID)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
