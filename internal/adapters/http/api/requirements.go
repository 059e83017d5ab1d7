package api

import (
	"context"
	"net/http"

	"github.com/okian/coachplan/internal/domain/types"
)

// RequirementsDependencies computes requirement batches.
type RequirementsDependencies interface {
	ComputeRequirements(ctx context.Context, records []types.SessionRecord) (types.Requirements, error)
}

// RequirementsHandler handles requirement computations.
type RequirementsHandler struct {
	deps RequirementsDependencies
}

// NewRequirementsHandler creates a new requirements handler.
func NewRequirementsHandler(deps RequirementsDependencies) *RequirementsHandler {
	return &RequirementsHandler{deps: deps}
}

// HandlePostRequirements handles POST /requirements. Invalid rows are listed
// in the response next to the computed ones.
func (h *RequirementsHandler) HandlePostRequirements(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_requirements"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req requirementsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.ComputeRequirements(r.Context(), req.Sessions)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
