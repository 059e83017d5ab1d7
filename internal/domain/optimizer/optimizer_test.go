package optimizer_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

func sess(hour int, side model.Side, category string, baseline, private int) model.Session {
	return model.Session{
		SessionInput: model.SessionInput{Start: at(hour), Side: side, Category: category},
		Baseline:     baseline,
		Private:      private,
		Total:        baseline + private,
	}
}

func coach(id string, skill, maxHours int) model.Coach {
	return model.Coach{ID: id, Name: id, SkillLevel: skill, MaxHoursPerDay: maxHours}
}

func window(id string, from, to int, available bool) model.Availability {
	return model.Availability{CoachID: id, Date: model.DateOf(day), Start: at(from), End: at(to), Available: available}
}

func solver(t *testing.T, table *rules.Table, opts ...optimizer.Option) *optimizer.Solver {
	t.Helper()
	base := []optimizer.Option{
		optimizer.WithTimeBudget(10 * time.Second),
		optimizer.WithMaxIterations(5000),
	}
	return optimizer.NewSolver(table, append(base, opts...)...)
}

func breakTable(t *testing.T, maxConsecutive, minBreak int) *rules.Table {
	t.Helper()
	table, err := rules.Parse([]byte(fmt.Sprintf(`
version: "breaks"
session_types:
  Novice:
    capacity: 19
    required_skill: 2
    roles: [Pusher, Tutor]
    baseline_rules:
      - {guest_range: [0, 0], baseline_coaches: 0}
      - {guest_range: [1, -1], baseline_coaches: 2}
optimizer_settings:
  max_consecutive_hours: %d
  default_min_break_minutes: %d
`, maxConsecutive, minBreak)))
	require.NoError(t, err)
	return table
}

// checkHard verifies the hard constraints of a result against its problem.
func checkHard(t *testing.T, p optimizer.Problem, set optimizer.Settings, res *optimizer.Result) {
	t.Helper()
	coaches := make(map[string]model.Coach)
	for _, c := range p.Coaches {
		coaches[c.ID] = c
	}
	perCoach := make(map[string][]time.Time)
	seen := make(map[string]bool)
	for _, a := range res.Assignments {
		key := a.Session.Key() + "#" + a.CoachID
		require.False(t, seen[key], "coach %s assigned twice to %s", a.CoachID, a.Session)
		seen[key] = true
		perCoach[a.CoachID] = append(perCoach[a.CoachID], a.Session.Start)
	}
	for id, starts := range perCoach {
		c := coaches[id]
		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
		byDate := make(map[string]int)
		run := 0
		for i, s := range starts {
			byDate[model.DateOf(s)]++
			if i > 0 {
				prevEnd := starts[i-1].Add(set.SessionLength)
				assert.False(t, s.Before(prevEnd), "coach %s double booked at %s", id, s)
				minBreak := time.Duration(c.MinBreakMinutes) * time.Minute
				if c.MinBreakMinutes == 0 {
					minBreak = set.DefaultMinBreak
				}
				if rest := s.Sub(prevEnd); rest > 0 && rest >= minBreak || model.DateOf(s) != model.DateOf(starts[i-1]) {
					run = 0
				}
			}
			run++
			if set.MaxConsecutive > 0 {
				assert.LessOrEqual(t, run, set.MaxConsecutive, "coach %s works too long without a break", id)
			}
		}
		for date, n := range byDate {
			assert.LessOrEqual(t, n, c.MaxHoursPerDay, "coach %s over daily cap on %s", id, date)
		}
	}
}

func TestSolveFullCoverage(t *testing.T) {
	table := rules.MustDefault()
	p := optimizer.Problem{
		Coaches: []model.Coach{coach("a", 3, 8), coach("b", 4, 8), coach("c", 2, 8), coach("d", 5, 8)},
	}
	for h := 9; h < 12; h++ {
		p.Sessions = append(p.Sessions,
			sess(h, model.SideLeft, "Novice", 2, 0),
			sess(h, model.SideRight, "Novice", 1, 1),
		)
	}

	s := solver(t, table)
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Breakdown.Understaffed)
	assert.Equal(t, 0, res.Breakdown.Overstaffed)
	assert.Len(t, res.Assignments, 12)
	assert.InDelta(t, 0, res.Objective, 1e-9)
	assert.True(t, res.LowerBoundReached)
	assert.Equal(t, optimizer.StopLowerBound, res.StopReason)
	checkHard(t, p, s.Settings(), res)

	roles := make(map[string][]string)
	for _, a := range res.Assignments {
		roles[a.Session.String()] = append(roles[a.Session.String()], a.Role)
	}
	for ref, got := range roles {
		if ref[len(ref)-4:] == "LEFT" {
			assert.Equal(t, []string{"Pusher", "Tutor"}, got)
		} else {
			assert.Equal(t, []string{"Pusher", "Private 1"}, got)
		}
	}
	require.Len(t, res.Coverage, 6)
	assert.Equal(t, 2, res.Coverage[0].Required)
	assert.Equal(t, 4, res.Coverage[0].Eligible)
}

func TestSolveRespectsDailyCap(t *testing.T) {
	p := optimizer.Problem{
		Sessions: []model.Session{
			sess(9, model.SideLeft, "Novice", 1, 0),
			sess(10, model.SideLeft, "Novice", 1, 0),
			sess(11, model.SideLeft, "Novice", 1, 0),
		},
		Coaches: []model.Coach{coach("a", 3, 1), coach("b", 3, 1)},
	}
	s := solver(t, rules.MustDefault())
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err, "understaffing without strict coverage is a successful solve")
	assert.Equal(t, 1, res.Breakdown.Understaffed)
	assert.Len(t, res.Assignments, 2)
	assert.GreaterOrEqual(t, res.Objective, 1000.0)
	checkHard(t, p, s.Settings(), res)
}

func TestSolveHonorsAvailabilityWindows(t *testing.T) {
	p := optimizer.Problem{
		Sessions: []model.Session{
			sess(9, model.SideLeft, "Novice", 1, 0),
			sess(10, model.SideLeft, "Novice", 1, 0),
		},
		Coaches: []model.Coach{coach("a", 3, 8), coach("b", 3, 8)},
		Availability: []model.Availability{
			window("a", 9, 10, true),
			window("b", 9, 10, false),
		},
	}
	res, err := solver(t, rules.MustDefault()).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Assignments, 2)
	byStart := map[int]string{}
	for _, a := range res.Assignments {
		byStart[a.Session.Start.Hour()] = a.CoachID
	}
	assert.Equal(t, "a", byStart[9])
	assert.Equal(t, "b", byStart[10])
}

func TestSolveDefaultAvailability(t *testing.T) {
	table, err := rules.Parse([]byte(`
version: "closed"
session_types:
  Novice:
    capacity: 19
    baseline_rules:
      - {guest_range: [0, -1], baseline_coaches: 1}
optimizer_settings:
  default_available: false
`))
	require.NoError(t, err)
	p := optimizer.Problem{
		Sessions:     []model.Session{sess(9, model.SideLeft, "Novice", 1, 0)},
		Coaches:      []model.Coach{coach("a", 3, 8), coach("b", 3, 8)},
		Availability: []model.Availability{window("b", 8, 12, true)},
	}
	res, err := solver(t, table).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "b", res.Assignments[0].CoachID)
	assert.Equal(t, 1, res.Coverage[0].Eligible)
}

func TestStrictCoverage(t *testing.T) {
	t.Run("precheck names the unstaffable session", func(t *testing.T) {
		p := optimizer.Problem{
			Sessions: []model.Session{sess(9, model.SideLeft, "Novice", 2, 0)},
			Coaches:  []model.Coach{coach("a", 3, 8)},
		}
		res, err := solver(t, rules.MustDefault(), optimizer.WithStrictCoverage(true)).Solve(context.Background(), p)
		assert.Nil(t, res)
		require.True(t, errors.Is(err, optimizer.ErrNoFeasibleSolution))
		var inf *optimizer.InfeasibleError
		require.True(t, errors.As(err, &inf))
		require.Len(t, inf.Reasons, 1)
		assert.Equal(t, optimizer.ConstraintAvailability, inf.Reasons[0].Constraint)
		assert.Equal(t, at(9), inf.Reasons[0].Session.Start)
		assert.Contains(t, err.Error(), "1 eligible coaches for 2 required")
	})

	t.Run("residual understaffing after search", func(t *testing.T) {
		p := optimizer.Problem{
			Sessions: []model.Session{
				sess(9, model.SideLeft, "Novice", 1, 0),
				sess(10, model.SideLeft, "Novice", 1, 0),
			},
			Coaches: []model.Coach{coach("a", 3, 1)},
		}
		_, err := solver(t, rules.MustDefault(), optimizer.WithStrictCoverage(true)).Solve(context.Background(), p)
		var inf *optimizer.InfeasibleError
		require.True(t, errors.As(err, &inf))
		require.Len(t, inf.Reasons, 1)
		assert.Equal(t, optimizer.ConstraintCoverage, inf.Reasons[0].Constraint)
	})

	t.Run("coverable problems succeed", func(t *testing.T) {
		p := optimizer.Problem{
			Sessions: []model.Session{sess(9, model.SideLeft, "Novice", 1, 0)},
			Coaches:  []model.Coach{coach("a", 3, 1)},
		}
		res, err := solver(t, rules.MustDefault(), optimizer.WithStrictCoverage(true)).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.Len(t, res.Assignments, 1)
	})
}

func TestBreakRule(t *testing.T) {
	table := breakTable(t, 2, 60)
	p := optimizer.Problem{
		Coaches: []model.Coach{coach("a", 3, 8)},
	}
	for h := 9; h < 13; h++ {
		p.Sessions = append(p.Sessions, sess(h, model.SideLeft, "Novice", 1, 0))
	}
	s := solver(t, table)
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Len(t, res.Assignments, 3, "two hours on, one off, one on")
	assert.Equal(t, 1, res.Breakdown.Understaffed)
	checkHard(t, p, s.Settings(), res)

	t.Run("a coach break overrides the default", func(t *testing.T) {
		p := p
		p.Coaches = []model.Coach{{ID: "a", SkillLevel: 3, MaxHoursPerDay: 8, MinBreakMinutes: 120}}
		res, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.Len(t, res.Assignments, 2)
		checkHard(t, p, s.Settings(), res)
	})

	t.Run("zero disables the rule", func(t *testing.T) {
		res, err := solver(t, breakTable(t, 0, 60)).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.Len(t, res.Assignments, 4)
	})
}

func TestBalanceAndSkill(t *testing.T) {
	t.Run("work is spread across coaches", func(t *testing.T) {
		p := optimizer.Problem{
			Sessions: []model.Session{
				sess(9, model.SideLeft, "Novice", 1, 0),
				sess(10, model.SideLeft, "Novice", 1, 0),
			},
			Coaches: []model.Coach{coach("a", 3, 8), coach("b", 3, 8)},
		}
		res, err := solver(t, rules.MustDefault()).Solve(context.Background(), p)
		require.NoError(t, err)
		require.Len(t, res.Assignments, 2)
		assert.NotEqual(t, res.Assignments[0].CoachID, res.Assignments[1].CoachID)
		assert.InDelta(t, 0, res.Breakdown.Imbalance, 1e-9)
		assert.True(t, res.LowerBoundReached)
	})

	t.Run("skilled coaches are preferred", func(t *testing.T) {
		p := optimizer.Problem{
			Sessions: []model.Session{sess(9, model.SideLeft, "Progressive", 1, 0)},
			Coaches:  []model.Coach{coach("low", 1, 8), coach("high", 5, 8)},
		}
		res, err := solver(t, rules.MustDefault()).Solve(context.Background(), p)
		require.NoError(t, err)
		require.Len(t, res.Assignments, 1)
		assert.Equal(t, "high", res.Assignments[0].CoachID)
		assert.Equal(t, "Coach", res.Assignments[0].Role)
		assert.Equal(t, 0, res.Breakdown.SkillDeficit)
	})

	t.Run("gaps are counted in slots", func(t *testing.T) {
		p := optimizer.Problem{
			Sessions: []model.Session{
				sess(9, model.SideLeft, "Novice", 1, 0),
				sess(12, model.SideLeft, "Novice", 1, 0),
			},
			Coaches: []model.Coach{coach("a", 3, 8)},
		}
		res, err := solver(t, rules.MustDefault()).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.InDelta(t, 2, res.Breakdown.GapHours, 1e-9)
		assert.InDelta(t, 10, res.Objective, 1e-9)
	})
}

func TestInvalidProblems(t *testing.T) {
	good := sess(9, model.SideLeft, "Novice", 1, 0)
	cases := map[string]optimizer.Problem{
		"duplicate coach": {
			Sessions: []model.Session{good},
			Coaches:  []model.Coach{coach("a", 3, 8), coach("a", 2, 8)},
		},
		"skill out of range": {
			Sessions: []model.Session{good},
			Coaches:  []model.Coach{coach("a", 6, 8)},
		},
		"negative cap": {
			Sessions: []model.Session{good},
			Coaches:  []model.Coach{coach("a", 3, -1)},
		},
		"inverted window": {
			Sessions:     []model.Session{good},
			Coaches:      []model.Coach{coach("a", 3, 8)},
			Availability: []model.Availability{window("a", 12, 9, true)},
		},
		"unknown coach in availability": {
			Sessions:     []model.Session{good},
			Coaches:      []model.Coach{coach("a", 3, 8)},
			Availability: []model.Availability{window("z", 9, 12, true)},
		},
		"unknown category": {
			Sessions: []model.Session{sess(9, model.SideLeft, "Tandem", 1, 0)},
			Coaches:  []model.Coach{coach("a", 3, 8)},
		},
		"duplicate session": {
			Sessions: []model.Session{good, good},
			Coaches:  []model.Coach{coach("a", 3, 8)},
		},
	}
	s := solver(t, rules.MustDefault())
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := s.Solve(context.Background(), p)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, optimizer.ErrInvalidProblem), "got %v", err)
		})
	}
}

func TestUnderstaffingIsMonotonic(t *testing.T) {
	s := solver(t, rules.MustDefault())
	prev := -1
	for required := 0; required <= 6; required++ {
		p := optimizer.Problem{
			Sessions: []model.Session{
				sess(9, model.SideLeft, "Novice", required, 0),
				sess(9, model.SideRight, "Novice", 1, 0),
				sess(10, model.SideLeft, "Novice", 2, 0),
			},
			Coaches: []model.Coach{coach("a", 3, 8), coach("b", 3, 8), coach("c", 3, 8), coach("d", 3, 8)},
		}
		res, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		under := res.Coverage[0].Understaffed
		assert.GreaterOrEqual(t, under, prev, "required=%d", required)
		prev = under
	}
}

func randomProblem(rng *rand.Rand) optimizer.Problem {
	var p optimizer.Problem
	nCoaches := 3 + rng.Intn(6)
	for i := 0; i < nCoaches; i++ {
		c := model.Coach{
			ID:             fmt.Sprintf("c%d", i),
			SkillLevel:     1 + rng.Intn(5),
			MaxHoursPerDay: 2 + rng.Intn(7),
		}
		if rng.Intn(3) == 0 {
			c.MinBreakMinutes = 30 * rng.Intn(4)
		}
		p.Coaches = append(p.Coaches, c)
		switch rng.Intn(3) {
		case 0:
			from := 7 + rng.Intn(6)
			p.Availability = append(p.Availability, window(c.ID, from, from+3+rng.Intn(8), true))
		case 1:
			from := 9 + rng.Intn(8)
			p.Availability = append(p.Availability, window(c.ID, from, from+1+rng.Intn(3), false))
		}
	}
	names := rules.MustDefault().CategoryNames()
	hours := 8 + rng.Intn(8)
	for h := 8; h < 8+hours; h++ {
		for _, side := range []model.Side{model.SideLeft, model.SideRight} {
			p.Sessions = append(p.Sessions, sess(h, side, names[rng.Intn(len(names))], rng.Intn(3), rng.Intn(2)))
		}
	}
	return p
}

func TestHardConstraintsOnRandomProblems(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for trial := 0; trial < 25; trial++ {
		p := randomProblem(rng)
		table := breakTable(t, rng.Intn(4), 60)
		// categories of the random problem come from the default table
		s := solver(t, rules.MustDefault(), optimizer.WithMaxIterations(3000))
		if trial%2 == 1 {
			s = solver(t, table, optimizer.WithMaxIterations(3000))
			for i := range p.Sessions {
				p.Sessions[i].Category = "Novice"
			}
		}
		res, err := s.Solve(context.Background(), p)
		require.NoError(t, err, "trial %d", trial)
		checkHard(t, p, s.Settings(), res)

		assigned := 0
		for _, cov := range res.Coverage {
			assigned += cov.Assigned
			assert.Equal(t, cov.Required-cov.Assigned+cov.Overstaffed, cov.Understaffed, "trial %d", trial)
		}
		assert.Equal(t, len(res.Assignments), assigned)
		assert.GreaterOrEqual(t, res.Objective+1e-9, res.LowerBound)
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	p := randomProblem(rand.New(rand.NewSource(5)))
	a, err := solver(t, rules.MustDefault(), optimizer.WithSeed(42)).Solve(context.Background(), p)
	require.NoError(t, err)
	b, err := solver(t, rules.MustDefault(), optimizer.WithSeed(42)).Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, a.Assignments, b.Assignments)
	assert.Equal(t, a.Objective, b.Objective)
	assert.Equal(t, a.Iterations, b.Iterations)
}

func TestSearchImprovesOnGreedy(t *testing.T) {
	p := randomProblem(rand.New(rand.NewSource(11)))
	greedy, err := solver(t, rules.MustDefault(), optimizer.WithMaxIterations(0)).Solve(context.Background(), p)
	require.NoError(t, err)
	searched, err := solver(t, rules.MustDefault(), optimizer.WithMaxIterations(20000)).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.LessOrEqual(t, searched.Objective, greedy.Objective+1e-9)
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := solver(t, rules.MustDefault()).Solve(ctx, optimizer.Problem{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHorizons(t *testing.T) {
	next := day.AddDate(0, 0, 1)
	p := optimizer.Problem{
		Sessions: []model.Session{
			sess(9, model.SideLeft, "Novice", 1, 0),
			sess(10, model.SideLeft, "Novice", 1, 0),
			{SessionInput: model.SessionInput{Start: next.Add(9 * time.Hour), Side: model.SideLeft, Category: "Novice"}, Baseline: 2, Total: 2},
		},
		Coaches: []model.Coach{coach("a", 3, 1), coach("b", 3, 1)},
		Availability: []model.Availability{
			{CoachID: "b", Date: model.DateOf(next), Start: next.Add(8 * time.Hour), End: next.Add(12 * time.Hour), Available: true},
		},
	}

	t.Run("a day horizon restricts the sessions", func(t *testing.T) {
		q := p
		q.Horizon = optimizer.DayHorizon(model.DateOf(day), p.Sessions)
		require.Len(t, q.Horizon, 2)
		res, err := solver(t, rules.MustDefault()).Solve(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, res.Coverage, 2)
		assert.Equal(t, 0, res.Breakdown.Understaffed)
	})

	t.Run("split horizons solve concurrently and merge", func(t *testing.T) {
		parts := optimizer.SplitByDate(p)
		require.Len(t, parts, 2)
		assert.Len(t, parts[0].Availability, 0)
		assert.Len(t, parts[1].Availability, 1)

		results, err := optimizer.SolveHorizons(context.Background(), solver(t, rules.MustDefault()), parts, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		merged := optimizer.Merge(results)
		assert.Len(t, merged.Coverage, 3)
		assert.Len(t, merged.Assignments, 4)
		assert.Equal(t, 0, merged.Breakdown.Understaffed)
	})

	t.Run("solving by date splits a multi-day problem", func(t *testing.T) {
		res, err := optimizer.SolveByDate(context.Background(), solver(t, rules.MustDefault()), p, 2)
		require.NoError(t, err)
		assert.Len(t, res.Coverage, 3)
		assert.Len(t, res.Assignments, 4)
	})

	t.Run("a failing horizon does not hide the others", func(t *testing.T) {
		parts := optimizer.SplitByDate(p)
		parts[1].Coaches = []model.Coach{coach("a", 3, 1), coach("a", 3, 1)}
		results, err := optimizer.SolveHorizons(context.Background(), solver(t, rules.MustDefault()), parts, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, optimizer.ErrInvalidProblem)
		assert.NotNil(t, results[0])
		assert.Nil(t, results[1])
	})
}

func TestRoles(t *testing.T) {
	novice, ok := rules.MustDefault().Category("Novice")
	require.True(t, ok)

	assert.Equal(t, []string{"Pusher", "Tutor", "Flowter", "Private 1", "Private 2"},
		optimizer.Roles(novice, sess(9, model.SideLeft, "Novice", 3, 2)))
	assert.Empty(t, optimizer.Roles(novice, sess(9, model.SideLeft, "Novice", 0, 0)))
}
