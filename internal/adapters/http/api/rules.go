package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/coachplan/internal/domain/rules"
)

// RulesDependencies reads and replaces the active rule table.
type RulesDependencies interface {
	Rules() *rules.Table
	ReplaceRules(ctx context.Context, data []byte) (*rules.Table, error)
}

// RulesHandler handles rule table requests.
type RulesHandler struct {
	deps RulesDependencies
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(deps RulesDependencies) *RulesHandler {
	return &RulesHandler{deps: deps}
}

// HandleRules handles GET /rules and PUT /rules. PUT takes a YAML rule
// table and activates it once it validates.
func (h *RulesHandler) HandleRules(w http.ResponseWriter, r *http.Request) {
	const op = "api.rules"
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, describeRules(h.deps.Rules()))
	case http.MethodPut:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		t, err := h.deps.ReplaceRules(r.Context(), data)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, describeRules(t))
	default:
		http.NotFound(w, r)
	}
}

func fingerprintHex(v uint64) string {
	return strconv.FormatUint(v, 16)
}
