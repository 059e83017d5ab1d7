package optimizer

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Reasons the local search stopped.
const (
	StopLowerBound = "lower_bound"
	StopStall      = "stall"
	StopIterations = "iterations"
	StopTimeBudget = "time_budget"
	StopCancelled  = "cancelled"
)

const (
	epsilon    = 1e-9
	checkEvery = 128
)

type searchOutcome struct {
	best       []pair
	objective  float64
	lowerBound float64
	iterations int
	stop       string
}

// search builds a greedy assignment and improves it with simulated annealing,
// returning the best assignment seen.
func (s *Solver) search(ctx context.Context, in *instance, deadline time.Time) searchOutcome {
	set := s.settings
	st := newState(in, set.Weights)
	construct(st)

	out := searchOutcome{
		best:       st.snapshot(),
		objective:  st.objective(),
		lowerBound: lowerBound(in, set.Weights),
		stop:       StopIterations,
	}
	if out.objective <= out.lowerBound+epsilon {
		out.stop = StopLowerBound
		return out
	}
	if set.MaxIterations == 0 || len(in.sessions) == 0 {
		return out
	}

	mv := &mover{st: st, rng: rand.New(rand.NewSource(set.Seed))}
	t0 := math.Max(1, math.Max(math.Max(set.Weights.Overstaffing, set.Weights.Imbalance),
		math.Max(set.Weights.Fragmentation, set.Weights.SkillMismatch)))
	tEnd := t0 / 1000
	bestIter := 0

	for it := 1; it <= set.MaxIterations; it++ {
		out.iterations = it
		if it%checkEvery == 0 {
			if ctx.Err() != nil {
				out.stop = StopCancelled
				return out
			}
			if time.Now().After(deadline) {
				out.stop = StopTimeBudget
				return out
			}
		}
		if it-bestIter > set.StallIterations {
			out.stop = StopStall
			return out
		}

		before := st.objective()
		if !mv.propose() {
			continue
		}
		delta := st.objective() - before
		temp := t0 * math.Pow(tEnd/t0, float64(it)/float64(set.MaxIterations))
		if delta > epsilon && mv.rng.Float64() >= math.Exp(-delta/temp) {
			mv.undo()
			continue
		}
		if obj := st.objective(); obj < out.objective-epsilon {
			out.objective = obj
			out.best = st.snapshot()
			bestIter = it
			if obj <= out.lowerBound+epsilon {
				out.stop = StopLowerBound
				return out
			}
		}
	}
	return out
}

// construct fills sessions greedily, scarcest first, each time picking the
// coach whose assignment raises the objective least.
func construct(st *state) {
	in := st.in
	order := make([]int, len(in.sessions))
	for i := range order {
		order[i] = i
	}
	slack := func(s int) int { return len(in.eligList[s]) - in.req[s] }
	sort.SliceStable(order, func(i, j int) bool { return slack(order[i]) < slack(order[j]) })

	for _, s := range order {
		for st.count[s] < in.req[s] {
			base := st.objective()
			pick, pickDelta := -1, 0.0
			for _, c := range in.eligList[s] {
				if !st.canAdd(s, c) {
					continue
				}
				st.add(s, c)
				delta := st.objective() - base
				st.remove(s, c)
				if pick < 0 || delta < pickDelta-epsilon {
					pick, pickDelta = c, delta
				}
			}
			if pick < 0 {
				break
			}
			st.add(s, pick)
		}
	}
}

type op struct {
	add  bool
	s, c int
}

// mover proposes random feasible neighbours of a state and can roll the last
// proposal back.
type mover struct {
	st  *state
	rng *rand.Rand
	log []op
}

func (mv *mover) apply(add bool, s, c int) {
	if add {
		mv.st.add(s, c)
	} else {
		mv.st.remove(s, c)
	}
	mv.log = append(mv.log, op{add: add, s: s, c: c})
}

func (mv *mover) undo() {
	for i := len(mv.log) - 1; i >= 0; i-- {
		o := mv.log[i]
		if o.add {
			mv.st.remove(o.s, o.c)
		} else {
			mv.st.add(o.s, o.c)
		}
	}
	mv.log = mv.log[:0]
}

// propose applies one move and reports whether anything changed.
func (mv *mover) propose() bool {
	mv.log = mv.log[:0]
	switch r := mv.rng.Intn(11); {
	case r < 3:
		return mv.addMove()
	case r < 4:
		return mv.removeMove()
	case r < 7:
		return mv.reassignMove()
	case r < 9:
		return mv.shiftMove()
	default:
		return mv.swapMove()
	}
}

func (mv *mover) randomPair() (pair, bool) {
	if len(mv.st.pairs) == 0 {
		return pair{}, false
	}
	return mv.st.pairs[mv.rng.Intn(len(mv.st.pairs))], true
}

// addMove staffs a session, preferring understaffed ones.
func (mv *mover) addMove() bool {
	st, in := mv.st, mv.st.in
	n := len(in.sessions)
	s := mv.rng.Intn(n)
	if mv.rng.Intn(2) == 0 {
		for k := 0; k < n; k++ {
			if cand := (s + k) % n; st.count[cand] < in.req[cand] {
				s = cand
				break
			}
		}
	}
	cands := in.eligList[s]
	if len(cands) == 0 {
		return false
	}
	c := cands[mv.rng.Intn(len(cands))]
	if !st.canAdd(s, c) {
		return false
	}
	mv.apply(true, s, c)
	return true
}

func (mv *mover) removeMove() bool {
	p, ok := mv.randomPair()
	if !ok {
		return false
	}
	mv.apply(false, p.s, p.c)
	return true
}

// reassignMove hands a session over to another coach.
func (mv *mover) reassignMove() bool {
	p, ok := mv.randomPair()
	if !ok {
		return false
	}
	cands := mv.st.in.eligList[p.s]
	c := cands[mv.rng.Intn(len(cands))]
	if c == p.c {
		return false
	}
	mv.apply(false, p.s, p.c)
	if !mv.st.canAdd(p.s, c) {
		mv.undo()
		return false
	}
	mv.apply(true, p.s, c)
	return true
}

// shiftMove moves a coach to another session.
func (mv *mover) shiftMove() bool {
	p, ok := mv.randomPair()
	if !ok {
		return false
	}
	cands := mv.st.in.coachElig[p.c]
	s := cands[mv.rng.Intn(len(cands))]
	if s == p.s {
		return false
	}
	mv.apply(false, p.s, p.c)
	if !mv.st.canAdd(s, p.c) {
		mv.undo()
		return false
	}
	mv.apply(true, s, p.c)
	return true
}

// swapMove exchanges the coaches of two assignments.
func (mv *mover) swapMove() bool {
	a, ok := mv.randomPair()
	if !ok {
		return false
	}
	b, _ := mv.randomPair()
	if a.c == b.c || a.s == b.s {
		return false
	}
	mv.apply(false, a.s, a.c)
	mv.apply(false, b.s, b.c)
	if !mv.st.canAdd(a.s, b.c) {
		mv.undo()
		return false
	}
	mv.apply(true, a.s, b.c)
	if !mv.st.canAdd(b.s, a.c) {
		mv.undo()
		return false
	}
	mv.apply(true, b.s, a.c)
	return true
}
