package optimizer

import (
	"sort"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/rules"
)

// Problem is one assignment problem: computed sessions, the roster, their
// availability, and the slot starts to solve over.
type Problem struct {
	Sessions     []model.Session
	Coaches      []model.Coach
	Availability []model.Availability
	Horizon      []time.Time // empty means every session
}

// DayHorizon returns the distinct session starts on date, ascending.
func DayHorizon(date string, sessions []model.Session) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, s := range sessions {
		if model.DateOf(s.Start) != date {
			continue
		}
		if _, ok := seen[s.Start.Unix()]; ok {
			continue
		}
		seen[s.Start.Unix()] = struct{}{}
		out = append(out, s.Start)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SplitByDate cuts p into one problem per session date. Each part keeps the
// full roster and the availability of its own date.
func SplitByDate(p Problem) []Problem {
	byDate := make(map[string][]model.Session)
	var dates []string
	for _, s := range p.Sessions {
		d := model.DateOf(s.Start)
		if _, ok := byDate[d]; !ok {
			dates = append(dates, d)
		}
		byDate[d] = append(byDate[d], s)
	}
	sort.Strings(dates)

	out := make([]Problem, 0, len(dates))
	for _, d := range dates {
		part := Problem{
			Sessions: byDate[d],
			Coaches:  p.Coaches,
			Horizon:  DayHorizon(d, byDate[d]),
		}
		for _, a := range p.Availability {
			if availabilityDate(a) == d {
				part.Availability = append(part.Availability, a)
			}
		}
		out = append(out, part)
	}
	return out
}

func availabilityDate(a model.Availability) string {
	if a.Date != "" {
		return a.Date
	}
	return model.DateOf(a.Start)
}

// windows are the availability records of one coach on one date.
type windows struct {
	available   []model.Availability
	unavailable []model.Availability
}

// instance is a validated problem with every lookup the search needs
// precomputed. Sessions are ordered by start, then side.
type instance struct {
	sessions []model.Session
	cats     []rules.Category
	coaches  []model.Coach

	req   []int
	start []time.Time
	end   []time.Time
	date  []int // index into dates
	dates []string

	conflicts [][]int  // sessions overlapping in time, excluding self
	elig      [][]bool // [session][coach]
	eligList  [][]int  // eligible coaches per session
	coachElig [][]int  // eligible sessions per coach
	active    [][]int  // coaches eligible for any session, per date

	capacity  []int
	minBreak  []time.Duration
	skillCost [][]int // [session][coach] levels below the category requirement

	length         time.Duration
	maxConsecutive int
}

func (s *Solver) buildInstance(p Problem) (*instance, error) {
	set := s.settings
	if set.SessionLength <= 0 {
		return nil, invalidf("session length must be positive")
	}

	coachIdx := make(map[string]int, len(p.Coaches))
	for i, c := range p.Coaches {
		switch {
		case c.ID == "":
			return nil, invalidf("coach %d has an empty id", i)
		case c.SkillLevel < model.MinSkillLevel || c.SkillLevel > model.MaxSkillLevel:
			return nil, invalidf("coach %s: skill level %d outside %d..%d", c.ID, c.SkillLevel, model.MinSkillLevel, model.MaxSkillLevel)
		case c.MaxHoursPerDay < 0:
			return nil, invalidf("coach %s: negative max hours per day", c.ID)
		case c.MinBreakMinutes < 0:
			return nil, invalidf("coach %s: negative min break", c.ID)
		}
		if _, dup := coachIdx[c.ID]; dup {
			return nil, invalidf("duplicate coach id %s", c.ID)
		}
		coachIdx[c.ID] = i
	}

	avail := make(map[string]map[string]*windows)
	for _, a := range p.Availability {
		if _, ok := coachIdx[a.CoachID]; !ok {
			return nil, invalidf("availability for unknown coach %s", a.CoachID)
		}
		if !a.End.After(a.Start) {
			return nil, invalidf("coach %s: availability window %s..%s is empty or inverted",
				a.CoachID, a.Start.Format(time.RFC3339), a.End.Format(time.RFC3339))
		}
		if a.Date != "" {
			if _, err := time.Parse(model.DateLayout, a.Date); err != nil {
				return nil, invalidf("coach %s: availability date %q", a.CoachID, a.Date)
			}
		}
		d := availabilityDate(a)
		if avail[a.CoachID] == nil {
			avail[a.CoachID] = make(map[string]*windows)
		}
		w := avail[a.CoachID][d]
		if w == nil {
			w = &windows{}
			avail[a.CoachID][d] = w
		}
		if a.Available {
			w.available = append(w.available, a)
		} else {
			w.unavailable = append(w.unavailable, a)
		}
	}

	var horizon map[int64]struct{}
	if len(p.Horizon) > 0 {
		horizon = make(map[int64]struct{}, len(p.Horizon))
		for _, h := range p.Horizon {
			horizon[h.Unix()] = struct{}{}
		}
	}

	in := &instance{
		coaches:        p.Coaches,
		length:         set.SessionLength,
		maxConsecutive: set.MaxConsecutive,
	}
	refs := make(map[string]struct{})
	for _, ses := range p.Sessions {
		if horizon != nil {
			if _, ok := horizon[ses.Start.Unix()]; !ok {
				continue
			}
		}
		if ses.Side != model.SideLeft && ses.Side != model.SideRight {
			return nil, invalidf("session %s: unknown side", ses.Ref())
		}
		if ses.Total < 0 || ses.Baseline < 0 || ses.Private < 0 {
			return nil, invalidf("session %s: negative requirement", ses.Ref())
		}
		key := ses.Ref().Key()
		if _, dup := refs[key]; dup {
			return nil, invalidf("duplicate session %s", ses.Ref())
		}
		refs[key] = struct{}{}
		in.sessions = append(in.sessions, ses)
	}
	sort.Slice(in.sessions, func(i, j int) bool {
		a, b := in.sessions[i], in.sessions[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Side < b.Side
	})

	n, m := len(in.sessions), len(p.Coaches)
	dateIdx := make(map[string]int)
	in.cats = make([]rules.Category, n)
	in.req = make([]int, n)
	in.start = make([]time.Time, n)
	in.end = make([]time.Time, n)
	in.date = make([]int, n)
	for i, ses := range in.sessions {
		c, ok := s.table.Category(ses.Category)
		if !ok {
			return nil, invalidf("session %s: unknown category %q", ses.Ref(), ses.Category)
		}
		in.cats[i] = c
		in.req[i] = ses.Total
		in.start[i] = ses.Start
		in.end[i] = ses.Start.Add(set.SessionLength)
		d := model.DateOf(ses.Start)
		idx, ok := dateIdx[d]
		if !ok {
			idx = len(in.dates)
			dateIdx[d] = idx
			in.dates = append(in.dates, d)
		}
		in.date[i] = idx
	}

	in.conflicts = make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n && in.start[j].Before(in.end[i]); j++ {
			in.conflicts[i] = append(in.conflicts[i], j)
			in.conflicts[j] = append(in.conflicts[j], i)
		}
	}

	in.capacity = make([]int, m)
	in.minBreak = make([]time.Duration, m)
	for c, coach := range p.Coaches {
		in.capacity[c] = coach.MaxHoursPerDay
		in.minBreak[c] = time.Duration(coach.MinBreakMinutes) * time.Minute
		if coach.MinBreakMinutes == 0 {
			in.minBreak[c] = set.DefaultMinBreak
		}
	}

	in.elig = make([][]bool, n)
	in.eligList = make([][]int, n)
	in.coachElig = make([][]int, m)
	in.skillCost = make([][]int, n)
	activeSet := make([]map[int]struct{}, len(in.dates))
	for i := range activeSet {
		activeSet[i] = make(map[int]struct{})
	}
	for i := 0; i < n; i++ {
		in.elig[i] = make([]bool, m)
		in.skillCost[i] = make([]int, m)
		for c, coach := range p.Coaches {
			if deficit := in.cats[i].RequiredSkill - coach.SkillLevel; deficit > 0 {
				in.skillCost[i][c] = deficit
			}
			if in.capacity[c] == 0 {
				continue
			}
			w := avail[coach.ID][in.dates[in.date[i]]]
			if !eligible(w, in.start[i], in.end[i], set.DefaultAvailable) {
				continue
			}
			in.elig[i][c] = true
			in.eligList[i] = append(in.eligList[i], c)
			in.coachElig[c] = append(in.coachElig[c], i)
			activeSet[in.date[i]][c] = struct{}{}
		}
	}
	in.active = make([][]int, len(in.dates))
	for d, coaches := range activeSet {
		for c := range coaches {
			in.active[d] = append(in.active[d], c)
		}
		sort.Ints(in.active[d])
	}
	return in, nil
}

// eligible applies the availability rules to one coach, date and interval:
// inside some available window (or the default when the date has none) and
// clear of every unavailable window.
func eligible(w *windows, start, end time.Time, defaultAvailable bool) bool {
	if w == nil {
		return defaultAvailable
	}
	for _, u := range w.unavailable {
		if u.Overlaps(start, end) {
			return false
		}
	}
	if len(w.available) == 0 {
		return defaultAvailable
	}
	for _, a := range w.available {
		if a.Covers(start, end) {
			return true
		}
	}
	return false
}
