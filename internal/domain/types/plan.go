package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/optimizer"
)

// PlanStatus is the lifecycle state of a plan job.
type PlanStatus string

// Plan states. Solved, Infeasible and Failed are terminal.
const (
	PlanQueued     PlanStatus = "queued"
	PlanRunning    PlanStatus = "running"
	PlanSolved     PlanStatus = "solved"
	PlanInfeasible PlanStatus = "infeasible"
	PlanFailed     PlanStatus = "failed"
)

// Terminal reports whether no further transition happens from s.
func (s PlanStatus) Terminal() bool {
	return s == PlanSolved || s == PlanInfeasible || s == PlanFailed
}

// CoachRecord is one roster member on the wire.
type CoachRecord struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	SkillLevel      int    `json:"skill_level"`
	MaxHoursPerDay  int    `json:"max_hours_per_day"`
	MinBreakMinutes int    `json:"min_break_minutes,omitempty"`
}

// Coach converts the record.
func (r CoachRecord) Coach() model.Coach {
	return model.Coach(r)
}

// FromCoach converts a roster member.
func FromCoach(c model.Coach) CoachRecord {
	return CoachRecord(c)
}

// AvailabilityRecord is one availability window. Available defaults to true.
type AvailabilityRecord struct {
	CoachID   string    `json:"coach_id"`
	Date      string    `json:"date,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available *bool     `json:"available,omitempty"`
}

// Availability converts the record.
func (r AvailabilityRecord) Availability() model.Availability {
	a := model.Availability{
		CoachID:   r.CoachID,
		Date:      r.Date,
		Start:     r.Start,
		End:       r.End,
		Available: true,
	}
	if r.Available != nil {
		a.Available = *r.Available
	}
	return a
}

// FromAvailability converts a window.
func FromAvailability(a model.Availability) AvailabilityRecord {
	available := a.Available
	return AvailabilityRecord{
		CoachID:   a.CoachID,
		Date:      a.Date,
		Start:     a.Start,
		End:       a.End,
		Available: &available,
	}
}

// PlanRequest asks for a staffing plan over computed sessions.
type PlanRequest struct {
	Sessions     []SessionRecord      `json:"sessions"`
	Coaches      []CoachRecord        `json:"coaches"`
	Availability []AvailabilityRecord `json:"availability"`
	Date         string               `json:"date,omitempty"` // restricts the horizon to one day
}

// AssignmentRecord maps one coach to one session.
type AssignmentRecord struct {
	Session string     `json:"session"`
	Start   time.Time  `json:"start"`
	Side    model.Side `json:"side"`
	CoachID string     `json:"coach_id"`
	Role    string     `json:"role"`
}

// CoverageRecord reports the staffing of one session.
type CoverageRecord struct {
	Session      string `json:"session"`
	Category     string `json:"category"`
	Required     int    `json:"required"`
	Assigned     int    `json:"assigned"`
	Eligible     int    `json:"eligible"`
	Understaffed int    `json:"understaffed"`
	Overstaffed  int    `json:"overstaffed"`
}

// BreakdownRecord holds the unweighted objective components.
type BreakdownRecord struct {
	Understaffed int     `json:"understaffed"`
	Overstaffed  int     `json:"overstaffed"`
	Imbalance    float64 `json:"imbalance"`
	GapHours     float64 `json:"gap_hours"`
	SkillDeficit int     `json:"skill_deficit"`
}

// PlanResult is the best assignment of a solved plan.
type PlanResult struct {
	Objective         float64            `json:"objective"`
	LowerBound        float64            `json:"lower_bound"`
	LowerBoundReached bool               `json:"lower_bound_reached"`
	StopReason        string             `json:"stop_reason"`
	Iterations        int                `json:"iterations"`
	ElapsedMs         int64              `json:"elapsed_ms"`
	Breakdown         BreakdownRecord    `json:"breakdown"`
	Assignments       []AssignmentRecord `json:"assignments"`
	Coverage          []CoverageRecord   `json:"coverage"`
}

// FromResult converts an optimizer result.
func FromResult(r *optimizer.Result) *PlanResult {
	if r == nil {
		return nil
	}
	out := &PlanResult{
		Objective:         r.Objective,
		LowerBound:        r.LowerBound,
		LowerBoundReached: r.LowerBoundReached,
		StopReason:        r.StopReason,
		Iterations:        r.Iterations,
		ElapsedMs:         r.Elapsed.Milliseconds(),
		Breakdown:         BreakdownRecord(r.Breakdown),
		Assignments:       make([]AssignmentRecord, 0, len(r.Assignments)),
		Coverage:          make([]CoverageRecord, 0, len(r.Coverage)),
	}
	for _, a := range r.Assignments {
		out.Assignments = append(out.Assignments, AssignmentRecord{
			Session: a.Session.String(),
			Start:   a.Session.Start,
			Side:    a.Session.Side,
			CoachID: a.CoachID,
			Role:    a.Role,
		})
	}
	for _, c := range r.Coverage {
		out.Coverage = append(out.Coverage, CoverageRecord{
			Session:      c.Session.String(),
			Category:     c.Category,
			Required:     c.Required,
			Assigned:     c.Assigned,
			Eligible:     c.Eligible,
			Understaffed: c.Understaffed,
			Overstaffed:  c.Overstaffed,
		})
	}
	return out
}

// Plan is the stored state of one plan job.
type Plan struct {
	ID          string     `json:"plan_id"`
	Status      PlanStatus `json:"status"`
	Fingerprint string     `json:"fingerprint"`
	RuleVersion string     `json:"rule_version"`
	Date        string     `json:"date,omitempty"`
	Sessions    int        `json:"sessions"`
	Coaches     int        `json:"coaches"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Result  *PlanResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Reasons []string    `json:"reasons,omitempty"`
}

// Finish moves p to its terminal state for the outcome of a solve.
func (p *Plan) Finish(res *optimizer.Result, err error, now time.Time) {
	p.UpdatedAt = now
	var inf *optimizer.InfeasibleError
	switch {
	case err == nil:
		p.Status = PlanSolved
		p.Result = FromResult(res)
	case errors.As(err, &inf):
		p.Status = PlanInfeasible
		p.Error = optimizer.ErrNoFeasibleSolution.Error()
		for _, r := range inf.Reasons {
			p.Reasons = append(p.Reasons, r.String())
		}
	default:
		p.Status = PlanFailed
		p.Error = err.Error()
	}
}

// String renders a one-line description of p.
func (p *Plan) String() string {
	return fmt.Sprintf("plan %s (%s, %d sessions, %d coaches)", p.ID, p.Status, p.Sessions, p.Coaches)
}
