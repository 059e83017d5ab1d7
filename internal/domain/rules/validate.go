package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
)

// build validates raw and turns it into an immutable Table. Every problem is
// collected so a broken table is reported in one pass.
func build(raw rawTable) (*Table, error) {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(raw.Version) == "" {
		add("version must not be empty")
	}
	if len(raw.SessionTypes) == 0 {
		add("at least one session type is required")
	}

	t := &Table{
		version:    strings.TrimSpace(raw.Version),
		categories: make(map[string]Category, len(raw.SessionTypes)),
	}

	for name, rc := range raw.SessionTypes {
		c, catIssues := buildCategory(name, rc)
		issues = append(issues, catIssues...)
		t.categories[name] = c
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)

	p := raw.Private
	if p.CoachesPerLesson < 1 {
		add("private_lessons.coaches_per_lesson must be >= 1, got %d", p.CoachesPerLesson)
	}
	if p.LessonsPerCoach < 1 {
		add("private_lessons.lessons_per_coach must be >= 1, got %d", p.LessonsPerCoach)
	}
	t.private = PrivateLessons{
		CoachesPerLesson: p.CoachesPerLesson,
		CanGroup:         p.CanGroup,
		LessonsPerCoach:  p.LessonsPerCoach,
	}

	o := raw.Operational
	if o.ArrivalMinutes < 0 {
		add("operational_settings.coach_arrival_minutes_before_session must be >= 0, got %d", o.ArrivalMinutes)
	}
	if o.SessionMinutes <= 0 {
		add("operational_settings.session_minutes must be > 0, got %d", o.SessionMinutes)
	}
	t.operational = Operational{
		ArrivalLead:   time.Duration(o.ArrivalMinutes) * time.Minute,
		SessionLength: time.Duration(o.SessionMinutes) * time.Minute,
	}
	if len(o.Sides) != 2 {
		add("operational_settings.sides must list exactly two sides, got %d", len(o.Sides))
	} else {
		for i, s := range o.Sides {
			side, err := model.ParseSide(s)
			if err != nil {
				add("operational_settings.sides[%d]: %v", i, err)
				continue
			}
			t.operational.Sides[i] = side
		}
		if t.operational.Sides[0] != "" && t.operational.Sides[0] == t.operational.Sides[1] {
			add("operational_settings.sides must be distinct")
		}
	}

	opt := raw.Optimizer
	if opt.TimeBudgetSeconds <= 0 {
		add("optimizer_settings.time_budget_seconds must be > 0")
	}
	if opt.MaxConsecutiveHours < 0 {
		add("optimizer_settings.max_consecutive_hours must be >= 0")
	}
	if opt.DefaultMinBreakMinutes < 0 {
		add("optimizer_settings.default_min_break_minutes must be >= 0")
	}
	w := opt.Weights
	for key, v := range map[string]float64{
		"understaffing":  w.Understaffing,
		"overstaffing":   w.Overstaffing,
		"imbalance":      w.Imbalance,
		"fragmentation":  w.Fragmentation,
		"skill_mismatch": w.SkillMismatch,
	} {
		if v < 0 {
			add("optimizer_settings.weights.%s must be >= 0", key)
		}
	}
	t.optimizer = OptimizerSettings{
		TimeBudget:          time.Duration(opt.TimeBudgetSeconds * float64(time.Second)),
		StrictCoverage:      opt.StrictCoverage,
		DefaultAvailable:    opt.DefaultAvailable,
		Seed:                opt.Seed,
		MaxConsecutiveHours: opt.MaxConsecutiveHours,
		DefaultMinBreak:     time.Duration(opt.DefaultMinBreakMinutes) * time.Minute,
		Weights: Weights{
			Understaffing: w.Understaffing,
			Overstaffing:  w.Overstaffing,
			Imbalance:     w.Imbalance,
			Fragmentation: w.Fragmentation,
			SkillMismatch: w.SkillMismatch,
		},
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return nil, &ConfigurationError{Issues: issues}
	}
	t.fingerprint = t.computeFingerprint()
	return t, nil
}

// buildCategory checks that the ranges of one category partition [0, capacity].
func buildCategory(name string, rc rawCategory) (Category, []string) {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf("session_types.%s: ", name)+fmt.Sprintf(format, args...))
	}

	c := Category{
		Name:          name,
		Capacity:      rc.Capacity,
		NoBaseline:    rc.NoBaseline,
		RequiredSkill: rc.RequiredSkill,
		Roles:         append([]string(nil), rc.Roles...),
	}
	if strings.TrimSpace(name) == "" {
		add("name must not be empty")
	}
	if rc.Capacity < 0 {
		add("capacity must be >= 0, got %d", rc.Capacity)
	}
	if rc.RequiredSkill < 0 || rc.RequiredSkill > model.MaxSkillLevel {
		add("required_skill must be within 0..%d, got %d", model.MaxSkillLevel, rc.RequiredSkill)
	}

	rules := rc.BaselineRules
	if len(rules) == 0 {
		if rc.NoBaseline {
			c.Ranges = []Range{{Min: 0, Max: Unbounded, Coaches: 0}}
			return c, issues
		}
		add("baseline_rules must not be empty")
		return c, issues
	}

	next := 0
	for i, rr := range rules {
		if len(rr.GuestRange) != 2 {
			add("baseline_rules[%d].guest_range must have two bounds, got %d", i, len(rr.GuestRange))
			return c, issues
		}
		r := Range{Min: rr.GuestRange[0], Max: rr.GuestRange[1], Coaches: rr.BaselineCoaches}
		if r.Max < 0 {
			r.Max = Unbounded
		}
		switch {
		case r.Min < next:
			add("baseline_rules[%d] [%d,%s] overlaps previous range", i, r.Min, maxString(r.Max))
		case r.Min > next:
			add("baseline_rules[%d] leaves guest counts %d..%d uncovered", i, next, r.Min-1)
		}
		if r.Max != Unbounded && r.Max < r.Min {
			add("baseline_rules[%d] max %d is below min %d", i, r.Max, r.Min)
		}
		if r.Min > rc.Capacity {
			add("baseline_rules[%d] starts at %d, above capacity %d", i, r.Min, rc.Capacity)
		}
		if r.Coaches < 0 {
			add("baseline_rules[%d].baseline_coaches must be >= 0, got %d", i, r.Coaches)
		}
		if rc.NoBaseline && r.Coaches != 0 {
			add("baseline_rules[%d] requires %d coaches but the category is no_baseline", i, r.Coaches)
		}
		if r.Max == Unbounded && i != len(rules)-1 {
			add("baseline_rules[%d] is open ended but is not the last range", i)
		}
		c.Ranges = append(c.Ranges, r)
		if r.Max == Unbounded {
			next = rc.Capacity + 1
		} else {
			next = r.Max + 1
		}
	}
	if last := c.Ranges[len(c.Ranges)-1]; last.Max != Unbounded && last.Max < rc.Capacity {
		add("baseline_rules stop at %d, capacity is %d", last.Max, rc.Capacity)
	}
	return c, issues
}

func maxString(v int) string {
	if v == Unbounded {
		return "open"
	}
	return fmt.Sprint(v)
}
