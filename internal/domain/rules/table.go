// Package rules holds the versioned rule table that maps session categories
// to capacity and guest-count breakpoints.
//
// A Table is immutable once built: every accessor returns copies, and hot
// reloads go through Registry, which swaps the active table atomically.
package rules

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/zeebo/xxh3"
)

// Unbounded marks an open-ended range maximum.
const Unbounded = -1

// Range maps the guest counts [Min, Max] to a baseline coach count.
type Range struct {
	Min     int
	Max     int // Unbounded for an open upper end
	Coaches int
}

// Contains reports whether guests falls inside the range.
func (r Range) Contains(guests int) bool {
	return guests >= r.Min && (r.Max == Unbounded || guests <= r.Max)
}

// Category is one session type.
type Category struct {
	Name          string
	Capacity      int
	Ranges        []Range // ascending, partition [0, Capacity]
	NoBaseline    bool    // never needs group coaches, only private ones
	RequiredSkill int     // nominal coach skill, 0 when not configured
	Roles         []string
}

// Baseline returns the coach count of the range containing guests.
func (c Category) Baseline(guests int) (int, bool) {
	i := sort.Search(len(c.Ranges), func(i int) bool {
		r := c.Ranges[i]
		return r.Max == Unbounded || r.Max >= guests
	})
	if i == len(c.Ranges) || !c.Ranges[i].Contains(guests) {
		return 0, false
	}
	return c.Ranges[i].Coaches, true
}

// Role returns the tag for the i-th baseline coach slot.
func (c Category) Role(i int) string {
	if i >= 0 && i < len(c.Roles) {
		return c.Roles[i]
	}
	return "Coach"
}

func (c Category) clone() Category {
	c.Ranges = append([]Range(nil), c.Ranges...)
	c.Roles = append([]string(nil), c.Roles...)
	return c
}

// PrivateLessons configures private-lesson staffing.
type PrivateLessons struct {
	CoachesPerLesson int
	CanGroup         bool
	LessonsPerCoach  int // only honored when CanGroup is set
}

// Coaches returns the private coach count for a number of lessons.
func (p PrivateLessons) Coaches(lessons int) int {
	if lessons <= 0 {
		return 0
	}
	if p.CanGroup && p.LessonsPerCoach > 1 {
		groups := (lessons + p.LessonsPerCoach - 1) / p.LessonsPerCoach
		return groups * p.CoachesPerLesson
	}
	return lessons * p.CoachesPerLesson
}

// Operational holds facility-level settings.
type Operational struct {
	ArrivalLead   time.Duration
	Sides         [2]model.Side
	SessionLength time.Duration
}

// HasSide reports whether s is one of the configured sides.
func (o Operational) HasSide(s model.Side) bool {
	return o.Sides[0] == s || o.Sides[1] == s
}

// Weights are the optimizer penalty weights.
type Weights struct {
	Understaffing float64
	Overstaffing  float64
	Imbalance     float64
	Fragmentation float64
	SkillMismatch float64
}

// OptimizerSettings holds the assignment optimizer policy.
type OptimizerSettings struct {
	TimeBudget          time.Duration
	StrictCoverage      bool
	DefaultAvailable    bool
	Seed                int64
	MaxConsecutiveHours int // 0 disables the break rule
	DefaultMinBreak     time.Duration
	Weights             Weights
}

// Table is a validated, immutable rule table.
type Table struct {
	version     string
	categories  map[string]Category
	names       []string
	private     PrivateLessons
	operational Operational
	optimizer   OptimizerSettings
	fingerprint uint64
}

// Version returns the configured table version.
func (t *Table) Version() string { return t.version }

// Fingerprint returns a content hash of the table.
func (t *Table) Fingerprint() uint64 { return t.fingerprint }

// Category returns a copy of the named category.
func (t *Table) Category(name string) (Category, bool) {
	c, ok := t.categories[name]
	if !ok {
		return Category{}, false
	}
	return c.clone(), true
}

// CategoryNames returns the category names in sorted order.
func (t *Table) CategoryNames() []string { return append([]string(nil), t.names...) }

// PrivateLessons returns the private lesson settings.
func (t *Table) PrivateLessons() PrivateLessons { return t.private }

// Operational returns the operational settings.
func (t *Table) Operational() Operational { return t.operational }

// Optimizer returns the optimizer settings.
func (t *Table) Optimizer() OptimizerSettings { return t.optimizer }

// computeFingerprint hashes a canonical rendering of the table.
func (t *Table) computeFingerprint() uint64 {
	var b strings.Builder
	w := func(parts ...string) {
		b.WriteString(strings.Join(parts, "|"))
		b.WriteByte('\n')
	}
	itoa := strconv.Itoa
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

	w("version", t.version)
	for _, name := range t.names {
		c := t.categories[name]
		w("category", name, itoa(c.Capacity), strconv.FormatBool(c.NoBaseline), itoa(c.RequiredSkill), strings.Join(c.Roles, ","))
		for _, r := range c.Ranges {
			w("range", itoa(r.Min), itoa(r.Max), itoa(r.Coaches))
		}
	}
	p := t.private
	w("private", itoa(p.CoachesPerLesson), strconv.FormatBool(p.CanGroup), itoa(p.LessonsPerCoach))
	o := t.operational
	w("ops", o.ArrivalLead.String(), string(o.Sides[0]), string(o.Sides[1]), o.SessionLength.String())
	s := t.optimizer
	w("opt", s.TimeBudget.String(), strconv.FormatBool(s.StrictCoverage), strconv.FormatBool(s.DefaultAvailable),
		strconv.FormatInt(s.Seed, 10), itoa(s.MaxConsecutiveHours), s.DefaultMinBreak.String(),
		ftoa(s.Weights.Understaffing), ftoa(s.Weights.Overstaffing), ftoa(s.Weights.Imbalance),
		ftoa(s.Weights.Fragmentation), ftoa(s.Weights.SkillMismatch))
	return xxh3.HashString(b.String())
}
