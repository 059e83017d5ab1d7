// Package types contains the JSON wire records shared by the HTTP API, the
// plan store and the batch CLI.
package types

import (
	"time"

	"github.com/okian/coachplan/internal/domain/aggregate"
	"github.com/okian/coachplan/internal/domain/calculator"
	"github.com/okian/coachplan/internal/domain/model"
)

// SessionRecord is one booking row on the wire.
type SessionRecord struct {
	Start          time.Time `json:"start"`
	Side           string    `json:"side"`
	Category       string    `json:"category"`
	BookedGuests   int       `json:"booked_guests"`
	PrivateLessons int       `json:"private_lessons"`
}

// Input converts the record to a calculator input.
func (r SessionRecord) Input() (model.SessionInput, error) {
	side, err := model.ParseSide(r.Side)
	if err != nil {
		return model.SessionInput{}, err
	}
	return model.SessionInput{
		Start:          r.Start,
		Side:           side,
		Category:       r.Category,
		BookedGuests:   r.BookedGuests,
		PrivateLessons: r.PrivateLessons,
	}, nil
}

// FromInput converts a calculator input.
func FromInput(in model.SessionInput) SessionRecord {
	return SessionRecord{
		Start:          in.Start,
		Side:           string(in.Side),
		Category:       in.Category,
		BookedGuests:   in.BookedGuests,
		PrivateLessons: in.PrivateLessons,
	}
}

// ComputedSession is a session with its staffing fields.
type ComputedSession struct {
	SessionRecord
	Baseline        int       `json:"baseline"`
	Private         int       `json:"private"`
	Total           int       `json:"total"`
	NoCoachRequired bool      `json:"no_coach_required"`
	CoachArrival    time.Time `json:"coach_arrival"`
}

// FromSession converts a computed session.
func FromSession(s model.Session) ComputedSession {
	return ComputedSession{
		SessionRecord: SessionRecord{
			Start:          s.Start,
			Side:           string(s.Side),
			Category:       s.Category,
			BookedGuests:   s.BookedGuests,
			PrivateLessons: s.PrivateLessons,
		},
		Baseline:        s.Baseline,
		Private:         s.Private,
		Total:           s.Total,
		NoCoachRequired: s.NoCoachRequired,
		CoachArrival:    s.CoachArrival,
	}
}

// HourlyRecord is one row of the hourly requirement report.
type HourlyRecord struct {
	Date                 string    `json:"date"`
	Hour                 int       `json:"hour"`
	Start                time.Time `json:"start"`
	LeftBaseline         int       `json:"left_baseline"`
	LeftPrivate          int       `json:"left_private"`
	LeftTotal            int       `json:"left_total"`
	RightBaseline        int       `json:"right_baseline"`
	RightPrivate         int       `json:"right_private"`
	RightTotal           int       `json:"right_total"`
	HourlyTotal          int       `json:"hourly_total"`
	LeftNoCoachRequired  bool      `json:"left_no_coach_required"`
	RightNoCoachRequired bool      `json:"right_no_coach_required"`
	IsPeak               bool      `json:"is_peak"`
}

// FromRequirement converts an hourly aggregate row.
func FromRequirement(r model.CoachRequirement) HourlyRecord {
	return HourlyRecord{
		Date:                 r.Date,
		Hour:                 r.Hour,
		Start:                r.Start,
		LeftBaseline:         r.LeftBaseline,
		LeftPrivate:          r.LeftPrivate,
		LeftTotal:            r.LeftTotal,
		RightBaseline:        r.RightBaseline,
		RightPrivate:         r.RightPrivate,
		RightTotal:           r.RightTotal,
		HourlyTotal:          r.HourlyTotal,
		LeftNoCoachRequired:  r.LeftNoCoachRequired,
		RightNoCoachRequired: r.RightNoCoachRequired,
		IsPeak:               r.IsPeak,
	}
}

// DailyRecord summarizes one date.
type DailyRecord struct {
	Date            string `json:"date"`
	CoachHours      int    `json:"coach_hours"`
	Sessions        int    `json:"sessions"`
	StaffedSessions int    `json:"staffed_sessions"`
	PeakTotal       int    `json:"peak_total"`
	PeakHours       []int  `json:"peak_hours"`
}

// WeekRowRecord is one hour-of-day line of a weekly table. PerDay starts on Monday.
type WeekRowRecord struct {
	Hour      int     `json:"hour"`
	PerDay    []int   `json:"per_day"`
	Total     int     `json:"total"`
	AvgPerDay float64 `json:"avg_per_day"`
}

// WeekRecord is the weekly table of one ISO week.
type WeekRecord struct {
	Start string          `json:"week_start"`
	Days  int             `json:"days"`
	Rows  []WeekRowRecord `json:"rows"`
}

// CategoryRecord summarizes one session category.
type CategoryRecord struct {
	Category      string  `json:"category"`
	Sessions      int     `json:"sessions"`
	CoachHours    int     `json:"coach_hours"`
	AvgPerSession float64 `json:"avg_per_session"`
}

// SummaryRecord is the headline of a requirements batch.
type SummaryRecord struct {
	From       string           `json:"from,omitempty"`
	To         string           `json:"to,omitempty"`
	Sessions   int              `json:"sessions"`
	CoachHours int              `json:"coach_hours"`
	PeakHours  []HourlyRecord   `json:"peak_hours"`
	Categories []CategoryRecord `json:"categories"`
}

// ValidationRecord reports one invalid input row.
type ValidationRecord struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Requirements is the response of a requirements computation.
type Requirements struct {
	RuleVersion string             `json:"rule_version"`
	Sessions    []ComputedSession  `json:"sessions"`
	Hourly      []HourlyRecord     `json:"hourly"`
	Daily       []DailyRecord      `json:"daily"`
	Weekly      []WeekRecord       `json:"weekly"`
	Summary     SummaryRecord      `json:"summary"`
	Errors      []ValidationRecord `json:"errors"`
}

// peakCount is the number of busiest hours listed in a summary.
const peakCount = 3

// FromBatch renders a processed batch and its aggregate.
func FromBatch(b calculator.Batch, sum aggregate.Summary) Requirements {
	out := Requirements{
		RuleVersion: b.RuleVersion,
		Sessions:    make([]ComputedSession, 0, len(b.Sessions)),
		Hourly:      make([]HourlyRecord, 0, len(sum.Hourly)),
		Daily:       make([]DailyRecord, 0, len(sum.Daily)),
		Weekly:      make([]WeekRecord, 0, len(sum.Weeks)),
		Errors:      make([]ValidationRecord, 0, len(b.Errors)),
		Summary: SummaryRecord{
			From:       sum.From,
			To:         sum.To,
			Sessions:   sum.Sessions,
			CoachHours: sum.CoachHours,
			PeakHours:  []HourlyRecord{},
			Categories: make([]CategoryRecord, 0, len(sum.Categories)),
		},
	}
	for _, s := range b.Sessions {
		out.Sessions = append(out.Sessions, FromSession(s))
	}
	for _, h := range sum.Hourly {
		out.Hourly = append(out.Hourly, FromRequirement(h))
	}
	for _, d := range sum.Daily {
		out.Daily = append(out.Daily, DailyRecord{
			Date:            d.Date,
			CoachHours:      d.CoachHours,
			Sessions:        d.Sessions,
			StaffedSessions: d.StaffedSessions,
			PeakTotal:       d.PeakTotal,
			PeakHours:       append([]int{}, d.PeakHours...),
		})
	}
	for _, w := range sum.Weeks {
		wr := WeekRecord{Start: w.Start, Days: w.Days, Rows: make([]WeekRowRecord, 0, len(w.Rows))}
		for _, r := range w.Rows {
			wr.Rows = append(wr.Rows, WeekRowRecord{
				Hour:      r.Hour,
				PerDay:    append([]int(nil), r.PerDay[:]...),
				Total:     r.Total,
				AvgPerDay: r.AvgPerDay,
			})
		}
		out.Weekly = append(out.Weekly, wr)
	}
	for _, p := range aggregate.Peaks(sum.Hourly, peakCount) {
		out.Summary.PeakHours = append(out.Summary.PeakHours, FromRequirement(p))
	}
	for _, c := range sum.Categories {
		out.Summary.Categories = append(out.Summary.Categories, CategoryRecord(c))
	}
	for _, e := range b.Errors {
		out.Errors = append(out.Errors, ValidationRecord{Row: e.Row, Field: e.Field, Message: e.Msg})
	}
	return out
}
