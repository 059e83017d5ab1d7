// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/coachplan/internal/adapters/mq/queue"
	"github.com/okian/coachplan/internal/adapters/repository"
	service "github.com/okian/coachplan/internal/app"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RequirementsDependencies
	PlanDependencies
	RulesDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	monitor             *MonitorHandler
	requirementsHandler *RequirementsHandler
	plansHandler        *PlansHandler
	rulesHandler        *RulesHandler
	logger              logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the access logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers. maxPlanList caps
// GET /plans?limit.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxPlanList int, opts ...ServerOption) *Server {
	s := &Server{
		monitor:             NewMonitorHandler(statsProvider),
		requirementsHandler: NewRequirementsHandler(deps),
		plansHandler:        NewPlansHandler(deps, maxPlanList),
		rulesHandler:        NewRulesHandler(deps),
		logger:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	routes := []struct {
		pattern, endpoint string
		handler           http.HandlerFunc
	}{
		{"/healthz", "healthz", s.monitor.HandleMetrics},
		{"/stats", "stats", s.monitor.HandleStats},
		{"/requirements", "requirements", s.requirementsHandler.HandlePostRequirements},
		{"/plans", "plans", s.plansHandler.HandlePlans},
		{"/plans/", "plan", s.plansHandler.HandleGetPlan},
		{"/rules", "rules", s.rulesHandler.HandleRules},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, instrument(s.logger, rt.endpoint, rt.handler))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and store errors to a status and code.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidRules),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed), errors.Is(err, repository.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// rulesInfo describes the active rule table.
type rulesInfo struct {
	Version     string   `json:"version"`
	Fingerprint string   `json:"fingerprint"`
	Categories  []string `json:"categories"`
}

func describeRules(t *rules.Table) rulesInfo {
	return rulesInfo{
		Version:     t.Version(),
		Fingerprint: fingerprintHex(t.Fingerprint()),
		Categories:  t.CategoryNames(),
	}
}

// Records shared by the handlers.
type (
	requirementsRequest struct {
		Sessions []types.SessionRecord `json:"sessions"`
	}

	planAccepted struct {
		PlanID    string `json:"plan_id"`
		Status    string `json:"status"`
		Duplicate bool   `json:"duplicate"`
	}
)
