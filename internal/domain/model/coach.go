package model

import "time"

// Skill bounds for Coach.SkillLevel.
const (
	MinSkillLevel = 1
	MaxSkillLevel = 5
)

// Coach is an optimizer input describing one member of the roster.
type Coach struct {
	ID              string
	Name            string
	SkillLevel      int
	MaxHoursPerDay  int
	MinBreakMinutes int
}

// Availability marks a window on a date as available or explicitly unavailable.
// A coach may have several windows per date.
type Availability struct {
	CoachID   string
	Date      string // YYYY-MM-DD
	Start     time.Time
	End       time.Time
	Available bool
}

// Covers reports whether [start, end) lies entirely within the window.
func (a Availability) Covers(start, end time.Time) bool {
	return !start.Before(a.Start) && !end.After(a.End)
}

// Overlaps reports whether [start, end) intersects the window.
func (a Availability) Overlaps(start, end time.Time) bool {
	return start.Before(a.End) && a.Start.Before(end)
}

// Assignment maps one coach to one session under a role tag.
type Assignment struct {
	Session SessionRef
	CoachID string
	Role    string
}
