package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/logger"
)

const defaultPollInterval = 500 * time.Millisecond

// planAck is the acknowledgement of POST /plans.
type planAck struct {
	PlanID    string `json:"plan_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Submit sends the plan request read from the batch files to a running
// service and, when cfg.Wait is set, polls until the plan is terminal.
func Submit(ctx context.Context, cfg *SubmitConfig, out io.Writer) (*types.Plan, error) {
	log := logger.Get()
	var stats Stats

	rows, err := readSessions(ctx, cfg.SessionsFile, cfg.Location, &stats)
	if err != nil {
		return nil, err
	}
	coaches, windows, err := readStaff(cfg.RosterFile, cfg.AvailabilityFile, cfg.Location)
	if err != nil {
		return nil, err
	}
	req := types.PlanRequest{Date: cfg.Date}
	for _, in := range rows.Inputs {
		req.Sessions = append(req.Sessions, types.FromInput(in))
	}
	for _, c := range coaches {
		req.Coaches = append(req.Coaches, types.FromCoach(c))
	}
	for _, a := range windows {
		req.Availability = append(req.Availability, types.FromAvailability(a))
	}

	client := newHTTPClient(cfg.Timeout)
	resp, err := client.Post(ctx, cfg.BaseURL+"/plans", req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service: %w", err)
	}
	var ack planAck
	if err := decodeResponse(resp, &ack, http.StatusAccepted, http.StatusOK); err != nil {
		return nil, err
	}
	log.Info(ctx, "plan submitted",
		logger.String("plan_id", ack.PlanID),
		logger.Bool("duplicate", ack.Duplicate),
		logger.Int("sessions", len(req.Sessions)),
		logger.Int("coaches", len(req.Coaches)))

	plan, err := fetchPlan(ctx, client, cfg.BaseURL, ack.PlanID)
	if err != nil {
		return nil, err
	}
	if cfg.Wait {
		if plan, err = waitPlan(ctx, client, cfg, plan); err != nil {
			return nil, err
		}
	}
	return plan, printPlan(out, plan)
}

func fetchPlan(ctx context.Context, client *HTTPClient, baseURL, id string) (*types.Plan, error) {
	resp, err := client.Get(ctx, baseURL+"/plans/"+id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch plan: %w", err)
	}
	var plan types.Plan
	if err := decodeResponse(resp, &plan, http.StatusOK); err != nil {
		return nil, err
	}
	return &plan, nil
}

// waitPlan polls until plan reaches a terminal state or ctx is done.
func waitPlan(ctx context.Context, client *HTTPClient, cfg *SubmitConfig, plan *types.Plan) (*types.Plan, error) {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !plan.Status.Terminal() {
		select {
		case <-ctx.Done():
			return plan, ctx.Err()
		case <-ticker.C:
		}
		next, err := fetchPlan(ctx, client, cfg.BaseURL, plan.ID)
		if err != nil {
			return plan, err
		}
		plan = next
	}
	return plan, nil
}

// printPlan writes the state of plan and, once solved, its headline.
func printPlan(w io.Writer, plan *types.Plan) error {
	if _, err := fmt.Fprintf(w, "Plan %s: %s (rules %s, %d sessions, %d coaches)\n",
		plan.ID, plan.Status, plan.RuleVersion, plan.Sessions, plan.Coaches); err != nil {
		return err
	}
	switch {
	case plan.Result != nil:
		r := plan.Result
		_, err := fmt.Fprintf(w, "Assignments: %d\nObjective: %.2f (lower bound %.2f, stopped: %s)\nUnderstaffed slots: %d, overstaffed: %d\n",
			len(r.Assignments), r.Objective, r.LowerBound, r.StopReason, r.Breakdown.Understaffed, r.Breakdown.Overstaffed)
		return err
	case plan.Error != "":
		if _, err := fmt.Fprintf(w, "Error: %s\n", plan.Error); err != nil {
			return err
		}
		for _, r := range plan.Reasons {
			if _, err := fmt.Fprintf(w, "   %s\n", r); err != nil {
				return err
			}
		}
	}
	return nil
}
