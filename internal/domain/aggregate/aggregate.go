// Package aggregate folds computed sessions into hourly, daily, weekly and
// per-category summaries. Every fold is keyed and sorted, so the output does
// not depend on the order of the input.
package aggregate

import (
	"sort"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
)

// DailyTotal summarizes one calendar date.
type DailyTotal struct {
	Date            string
	CoachHours      int   // sum of hourly totals
	Sessions        int   // session records on the date
	StaffedSessions int   // sessions that need at least one coach
	PeakTotal       int   // highest hourly total of the date
	PeakHours       []int // hours flagged as peak, ascending
}

// WeekRow is one hour-of-day line of a weekly table.
type WeekRow struct {
	Hour      int
	PerDay    [7]int // Monday first
	Total     int
	AvgPerDay float64
}

// Week is the weekly table of one ISO week.
type Week struct {
	Start string // Monday, YYYY-MM-DD
	Days  int    // dates of the week that have sessions
	Rows  []WeekRow
}

// CategoryTotal summarizes one session category.
type CategoryTotal struct {
	Category      string
	Sessions      int
	CoachHours    int
	AvgPerSession float64
}

// Summary is the full aggregate of a batch.
type Summary struct {
	Hourly     []model.CoachRequirement
	Daily      []DailyTotal
	Weeks      []Week
	Categories []CategoryTotal

	From       string // first date, empty when there are no sessions
	To         string // last date
	Sessions   int
	CoachHours int
}

// Aggregate builds every summary of sessions.
func Aggregate(sessions []model.Session) Summary {
	hourly := Hourly(sessions)
	s := Summary{
		Hourly:     hourly,
		Daily:      Daily(sessions, hourly),
		Weeks:      Weekly(hourly),
		Categories: Categories(sessions),
		Sessions:   len(sessions),
	}
	for _, h := range hourly {
		s.CoachHours += h.HourlyTotal
	}
	if len(s.Daily) > 0 {
		s.From = s.Daily[0].Date
		s.To = s.Daily[len(s.Daily)-1].Date
	}
	return s
}

// Hourly pairs LEFT and RIGHT sessions sharing a start instant into one row
// per hour and flags peak hours. Duplicate records for one side are summed;
// a side without records needs no coach.
func Hourly(sessions []model.Session) []model.CoachRequirement {
	rows := make(map[int64]*model.CoachRequirement)

	for _, s := range sessions {
		key := s.Start.Unix()
		row, ok := rows[key]
		if !ok {
			row = &model.CoachRequirement{
				Start:                s.Start,
				LeftNoCoachRequired:  true,
				RightNoCoachRequired: true,
			}
			rows[key] = row
		} else if s.Start.Location().String() < row.Start.Location().String() {
			// same instant in another location: keep one canonical rendering
			row.Start = s.Start
		}

		switch s.Side {
		case model.SideLeft:
			row.LeftBaseline += s.Baseline
			row.LeftPrivate += s.Private
			row.LeftTotal += s.Total
			row.LeftNoCoachRequired = row.LeftNoCoachRequired && s.NoCoachRequired
		case model.SideRight:
			row.RightBaseline += s.Baseline
			row.RightPrivate += s.Private
			row.RightTotal += s.Total
			row.RightNoCoachRequired = row.RightNoCoachRequired && s.NoCoachRequired
		}
	}

	out := make([]model.CoachRequirement, 0, len(rows))
	dayMax := make(map[string]int)
	for _, row := range rows {
		row.Date = model.DateOf(row.Start)
		row.Hour = row.Start.Hour()
		row.HourlyTotal = row.LeftTotal + row.RightTotal
		if row.HourlyTotal > dayMax[row.Date] {
			dayMax[row.Date] = row.HourlyTotal
		}
		out = append(out, *row)
	}
	for i := range out {
		m := dayMax[out[i].Date]
		out[i].IsPeak = m > 0 && out[i].HourlyTotal == m
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Daily folds hourly rows and their sessions into one total per date.
func Daily(sessions []model.Session, hourly []model.CoachRequirement) []DailyTotal {
	days := make(map[string]*DailyTotal)
	day := func(date string) *DailyTotal {
		d, ok := days[date]
		if !ok {
			d = &DailyTotal{Date: date}
			days[date] = d
		}
		return d
	}

	// hourly rows carry the canonical date of each instant
	dateOf := make(map[int64]string, len(hourly))
	for _, h := range hourly {
		dateOf[h.Start.Unix()] = h.Date
		d := day(h.Date)
		d.CoachHours += h.HourlyTotal
		if h.HourlyTotal > d.PeakTotal {
			d.PeakTotal = h.HourlyTotal
		}
		if h.IsPeak {
			d.PeakHours = append(d.PeakHours, h.Hour)
		}
	}
	for _, s := range sessions {
		date, ok := dateOf[s.Start.Unix()]
		if !ok {
			date = model.DateOf(s.Start)
		}
		d := day(date)
		d.Sessions++
		if !s.NoCoachRequired {
			d.StaffedSessions++
		}
	}

	out := make([]DailyTotal, 0, len(days))
	for _, d := range days {
		sort.Ints(d.PeakHours)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Weekly sums hourly totals by hour-of-day across each ISO week. AvgPerDay
// divides by the number of dates of the week that appear in the input.
func Weekly(hourly []model.CoachRequirement) []Week {
	type acc struct {
		days map[string]struct{}
		rows map[int]*WeekRow
	}
	weeks := make(map[string]*acc)

	for _, h := range hourly {
		idx := weekdayIndex(h.Start.Weekday())
		y, m, d := h.Start.Date()
		monday := time.Date(y, m, d, 0, 0, 0, 0, h.Start.Location()).AddDate(0, 0, -idx)
		key := monday.Format(model.DateLayout)

		w, ok := weeks[key]
		if !ok {
			w = &acc{days: make(map[string]struct{}), rows: make(map[int]*WeekRow)}
			weeks[key] = w
		}
		w.days[h.Date] = struct{}{}
		row, ok := w.rows[h.Hour]
		if !ok {
			row = &WeekRow{Hour: h.Hour}
			w.rows[h.Hour] = row
		}
		row.PerDay[idx] += h.HourlyTotal
		row.Total += h.HourlyTotal
	}

	out := make([]Week, 0, len(weeks))
	for key, w := range weeks {
		week := Week{Start: key, Days: len(w.days)}
		for _, row := range w.rows {
			row.AvgPerDay = float64(row.Total) / float64(week.Days)
			week.Rows = append(week.Rows, *row)
		}
		sort.Slice(week.Rows, func(i, j int) bool { return week.Rows[i].Hour < week.Rows[j].Hour })
		out = append(out, week)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Categories summarizes sessions per category, sorted by name.
func Categories(sessions []model.Session) []CategoryTotal {
	cats := make(map[string]*CategoryTotal)
	for _, s := range sessions {
		c, ok := cats[s.Category]
		if !ok {
			c = &CategoryTotal{Category: s.Category}
			cats[s.Category] = c
		}
		c.Sessions++
		c.CoachHours += s.Total
	}
	out := make([]CategoryTotal, 0, len(cats))
	for _, c := range cats {
		c.AvgPerSession = float64(c.CoachHours) / float64(c.Sessions)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Peaks returns the peak hourly rows, highest total first, then earliest.
func Peaks(hourly []model.CoachRequirement, n int) []model.CoachRequirement {
	rows := append([]model.CoachRequirement(nil), hourly...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].HourlyTotal != rows[j].HourlyTotal {
			return rows[i].HourlyTotal > rows[j].HourlyTotal
		}
		return rows[i].Start.Before(rows[j].Start)
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func weekdayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }
