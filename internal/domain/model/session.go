// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSide is returned when a side identifier is not LEFT or RIGHT.
var ErrInvalidSide = errors.New("invalid side")

// Side identifies one of the two parallel lanes run in the same hour slot.
type Side string

// Known sides.
const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// ParseSide parses a side identifier, case-insensitively.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideLeft:
		return SideLeft, nil
	case SideRight:
		return SideRight, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// DateLayout is the calendar date format used for grouping and wire records.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) string { return t.Format(DateLayout) }

// SessionInput is one booking row: one side of the facility for one hour slot.
type SessionInput struct {
	Start          time.Time // session start
	Side           Side      // LEFT or RIGHT
	Category       string    // rule table category name
	BookedGuests   int       // group guests, 0..capacity
	PrivateLessons int       // private lessons booked in the slot
}

// Ref returns the reference identifying this session.
func (in SessionInput) Ref() SessionRef {
	return SessionRef{Start: in.Start, Side: in.Side}
}

// Session is a SessionInput with its computed staffing fields. The computed
// fields are owned by the calculator and are a pure function of the input
// and the active rule table.
type Session struct {
	SessionInput

	Baseline        int
	Private         int
	Total           int
	NoCoachRequired bool
	CoachArrival    time.Time
}

// SessionRef identifies a session by start instant and side.
type SessionRef struct {
	Start time.Time
	Side  Side
}

// String renders the ref as "<RFC3339 start>/<side>".
func (r SessionRef) String() string {
	return r.Start.Format(time.RFC3339) + "/" + string(r.Side)
}

// Key returns a comparable key that ignores the time.Time location pointer.
func (r SessionRef) Key() string {
	return fmt.Sprintf("%d/%s", r.Start.Unix(), r.Side)
}

// ParseSessionRef parses the String form of a SessionRef.
func ParseSessionRef(s string) (SessionRef, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 {
		return SessionRef{}, fmt.Errorf("invalid session ref %q", s)
	}
	start, err := time.Parse(time.RFC3339, s[:i])
	if err != nil {
		return SessionRef{}, fmt.Errorf("invalid session ref %q: %w", s, err)
	}
	side, err := ParseSide(s[i+1:])
	if err != nil {
		return SessionRef{}, err
	}
	return SessionRef{Start: start, Side: side}, nil
}

// CoachRequirement is the per-hour aggregate pairing LEFT and RIGHT.
type CoachRequirement struct {
	Start time.Time
	Date  string
	Hour  int

	LeftBaseline  int
	LeftPrivate   int
	LeftTotal     int
	RightBaseline int
	RightPrivate  int
	RightTotal    int
	HourlyTotal   int

	LeftNoCoachRequired  bool
	RightNoCoachRequired bool
	IsPeak               bool
}
