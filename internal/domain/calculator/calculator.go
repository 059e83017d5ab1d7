// Package calculator turns session bookings into coaching requirements under
// a rule table. Every function here is pure: the same input and table always
// produce the same output, so sessions can be computed in parallel.
package calculator

import (
	"fmt"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/rules"
)

// Requirement is the staffing need of one session.
type Requirement struct {
	Baseline        int
	Private         int
	Total           int
	NoCoachRequired bool
	CoachArrival    time.Time
}

// Requirements computes the staffing need for a category, guest count and
// private lesson count starting at start.
func Requirements(t *rules.Table, category string, guests, lessons int, start time.Time) (Requirement, error) {
	c, ok := t.Category(category)
	if !ok {
		return Requirement{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	baseline, ok := c.Baseline(guests)
	if !ok {
		return Requirement{}, fmt.Errorf("%w: %s with %d guests", ErrRangeNotFound, category, guests)
	}
	private := t.PrivateLessons().Coaches(lessons)
	return Requirement{
		Baseline:        baseline,
		Private:         private,
		Total:           baseline + private,
		NoCoachRequired: NoCoachRequired(c, guests, private),
		CoachArrival:    CoachArrival(t, start),
	}, nil
}

// NoCoachRequired reports whether a session needs no staffing at all: nobody
// booked, or a no_baseline category without private lessons.
func NoCoachRequired(c rules.Category, guests, private int) bool {
	if private != 0 {
		return false
	}
	return guests == 0 || c.NoBaseline
}

// CoachArrival returns when coaches must arrive for a session starting at start.
func CoachArrival(t *rules.Table, start time.Time) time.Time {
	return start.Add(-t.Operational().ArrivalLead)
}

// Compute fills in the computed fields of one session. An unmatched range is
// reported as a ComputationFault since validated input should always match.
func Compute(t *rules.Table, in model.SessionInput) (model.Session, error) {
	req, err := Requirements(t, in.Category, in.BookedGuests, in.PrivateLessons, in.Start)
	if err != nil {
		if isRangeNotFound(err) {
			return model.Session{}, &ComputationFault{Session: in.Ref(), Err: err}
		}
		return model.Session{}, err
	}
	return model.Session{
		SessionInput:    in,
		Baseline:        req.Baseline,
		Private:         req.Private,
		Total:           req.Total,
		NoCoachRequired: req.NoCoachRequired,
		CoachArrival:    req.CoachArrival,
	}, nil
}

// Validate checks one input against the table and returns every problem found.
func Validate(t *rules.Table, in model.SessionInput) []error {
	var errs []error
	add := func(field string, kind error, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Kind: kind, Msg: fmt.Sprintf(format, args...)})
	}

	if !t.Operational().HasSide(in.Side) {
		add("side", ErrUnknownSide, "side %q is not configured", in.Side)
	}
	if in.BookedGuests < 0 {
		add("booked_guests", ErrNegativeGuests, "negative guest count: %d", in.BookedGuests)
	}
	if in.PrivateLessons < 0 {
		add("private_lessons_count", ErrNegativePrivate, "negative private lesson count: %d", in.PrivateLessons)
	}
	c, ok := t.Category(in.Category)
	if !ok {
		add("category", ErrUnknownCategory, "unknown session type: %s", in.Category)
		return errs
	}
	if in.BookedGuests > c.Capacity {
		add("booked_guests", ErrOverCapacity, "guests (%d) exceeds capacity (%d) for %s", in.BookedGuests, c.Capacity, c.Name)
	}
	return errs
}
