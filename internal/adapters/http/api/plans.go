package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/coachplan/internal/domain/types"
)

const defaultPlanList = 20

// PlanDependencies submits and reads plan jobs.
type PlanDependencies interface {
	SubmitPlan(ctx context.Context, req types.PlanRequest) (string, bool, error)
	Plan(ctx context.Context, id string) (*types.Plan, error)
	Plans(ctx context.Context, limit int) ([]*types.Plan, error)
}

// PlansHandler handles plan requests.
type PlansHandler struct {
	deps     PlanDependencies
	maxLimit int
}

// NewPlansHandler creates a new plans handler.
func NewPlansHandler(deps PlanDependencies, maxLimit int) *PlansHandler {
	if maxLimit < 1 {
		maxLimit = defaultPlanList
	}
	return &PlansHandler{deps: deps, maxLimit: maxLimit}
}

// HandlePlans handles POST /plans and GET /plans?limit=N.
func (h *PlansHandler) HandlePlans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *PlansHandler) submit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_plan"
	var req types.PlanRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	id, dup, err := h.deps.SubmitPlan(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, planAccepted{PlanID: id, Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, planAccepted{PlanID: id, Status: string(types.PlanQueued)})
}

func (h *PlansHandler) list(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_plans"
	n := min(defaultPlanList, h.maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	plans, err := h.deps.Plans(r.Context(), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// HandleGetPlan handles GET /plans/{plan_id}.
func (h *PlansHandler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_plan"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/plans/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	plan, err := h.deps.Plan(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
