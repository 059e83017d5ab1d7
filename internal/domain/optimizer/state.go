package optimizer

import (
	"math"
	"sort"
	"time"

	"github.com/okian/coachplan/internal/domain/rules"
)

type pair struct{ s, c int }

// state is one assignment with its objective components kept up to date
// incrementally. Every mutation goes through add and remove.
type state struct {
	in *instance
	w  rules.Weights

	x     [][]bool  // [session][coach]
	pos   [][]int32 // index of (s, c) in pairs, -1 when unassigned
	pairs []pair
	count []int
	day   [][][]int // [coach][date] assigned sessions, ordered by start

	under int
	over  int
	skill int
	gap   [][]float64 // [coach][date]
	gaps  float64
	imb   []float64 // [date]
	imbs  float64
}

func newState(in *instance, w rules.Weights) *state {
	n, m, nd := len(in.sessions), len(in.coaches), len(in.dates)
	st := &state{
		in:    in,
		w:     w,
		x:     make([][]bool, n),
		pos:   make([][]int32, n),
		count: make([]int, n),
		day:   make([][][]int, m),
		gap:   make([][]float64, m),
		imb:   make([]float64, nd),
	}
	for s := 0; s < n; s++ {
		st.x[s] = make([]bool, m)
		st.pos[s] = make([]int32, m)
		for c := range st.pos[s] {
			st.pos[s][c] = -1
		}
		st.under += in.req[s]
	}
	for c := 0; c < m; c++ {
		st.day[c] = make([][]int, nd)
		st.gap[c] = make([]float64, nd)
	}
	return st
}

func (st *state) objective() float64 {
	w := st.w
	return w.Understaffing*float64(st.under) +
		w.Overstaffing*float64(st.over) +
		w.Imbalance*st.imbs +
		w.Fragmentation*st.gaps +
		w.SkillMismatch*float64(st.skill)
}

// canAdd checks every hard constraint for assigning coach c to session s.
func (st *state) canAdd(s, c int) bool {
	in := st.in
	if !in.elig[s][c] || st.x[s][c] {
		return false
	}
	d := in.date[s]
	if len(st.day[c][d]) >= in.capacity[c] {
		return false
	}
	for _, t := range in.conflicts[s] {
		if st.x[t][c] {
			return false
		}
	}
	return st.breaksOK(c, d, s)
}

// breaksOK reports whether c's day stays within the consecutive-slot limit
// once s is added. Two assignments belong to one run unless the time between
// them is positive and at least the coach's minimum break.
func (st *state) breaksOK(c, d, s int) bool {
	in := st.in
	if in.maxConsecutive <= 0 {
		return true
	}
	list := st.day[c][d]
	at := sort.Search(len(list), func(i int) bool { return !in.start[list[i]].Before(in.start[s]) })
	run, prev := 0, -1
	visit := func(cur int) bool {
		if prev >= 0 {
			rest := in.start[cur].Sub(in.end[prev])
			if rest > 0 && rest >= in.minBreak[c] {
				run = 0
			}
		}
		run++
		prev = cur
		return run <= in.maxConsecutive
	}
	for i := 0; i <= len(list); i++ {
		var cur int
		switch {
		case i < at:
			cur = list[i]
		case i == at:
			cur = s
		default:
			cur = list[i-1]
		}
		if !visit(cur) {
			return false
		}
	}
	return true
}

func (st *state) add(s, c int) {
	in := st.in
	r := in.req[s]
	if st.count[s] < r {
		st.under--
	} else {
		st.over++
	}
	st.count[s]++
	st.x[s][c] = true
	st.pos[s][c] = int32(len(st.pairs))
	st.pairs = append(st.pairs, pair{s, c})
	st.skill += in.skillCost[s][c]

	d := in.date[s]
	list := st.day[c][d]
	at := sort.Search(len(list), func(i int) bool { return !in.start[list[i]].Before(in.start[s]) })
	list = append(list, 0)
	copy(list[at+1:], list[at:])
	list[at] = s
	st.day[c][d] = list
	st.refresh(c, d)
}

func (st *state) remove(s, c int) {
	in := st.in
	st.count[s]--
	if st.count[s] < in.req[s] {
		st.under++
	} else {
		st.over--
	}
	st.x[s][c] = false
	i := st.pos[s][c]
	last := st.pairs[len(st.pairs)-1]
	st.pairs[i] = last
	st.pos[last.s][last.c] = i
	st.pairs = st.pairs[:len(st.pairs)-1]
	st.pos[s][c] = -1
	st.skill -= in.skillCost[s][c]

	d := in.date[s]
	list := st.day[c][d]
	for k, v := range list {
		if v == s {
			st.day[c][d] = append(list[:k], list[k+1:]...)
			break
		}
	}
	st.refresh(c, d)
}

// refresh recomputes the gap of (c, d) and the imbalance of d.
func (st *state) refresh(c, d int) {
	in := st.in
	list := st.day[c][d]
	g := 0.0
	if len(list) > 1 {
		span := in.end[list[len(list)-1]].Sub(in.start[list[0]])
		idle := span - in.length*time.Duration(len(list))
		if idle > 0 {
			g = float64(idle) / float64(in.length)
		}
	}
	st.gaps += g - st.gap[c][d]
	st.gap[c][d] = g

	v := st.imbalance(d)
	st.imbs += v - st.imb[d]
	st.imb[d] = v
}

// imbalance is the summed absolute deviation of assigned slots from the mean
// across the coaches active on date d.
func (st *state) imbalance(d int) float64 {
	active := st.in.active[d]
	if len(active) == 0 {
		return 0
	}
	total := 0
	for _, c := range active {
		total += len(st.day[c][d])
	}
	mean := float64(total) / float64(len(active))
	dev := 0.0
	for _, c := range active {
		dev += math.Abs(float64(len(st.day[c][d])) - mean)
	}
	return dev
}

func (st *state) snapshot() []pair {
	out := make([]pair, len(st.pairs))
	copy(out, st.pairs)
	return out
}

// lowerBound is the understaffing no assignment can avoid: sessions needing
// more coaches than are eligible.
func lowerBound(in *instance, w rules.Weights) float64 {
	forced := 0
	for s, r := range in.req {
		if short := r - len(in.eligList[s]); short > 0 {
			forced += short
		}
	}
	return w.Understaffing * float64(forced)
}
