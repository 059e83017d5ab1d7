package api

import (
	"net/http"

	"github.com/okian/coachplan/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// MonitorHandler serves the process metrics and the service statistics.
type MonitorHandler struct {
	stats   StatsProvider
	metrics http.Handler
}

// NewMonitorHandler exposes the metrics registry and stats.
func NewMonitorHandler(stats StatsProvider) *MonitorHandler {
	return &MonitorHandler{
		stats:   stats,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleMetrics handles GET /healthz with the Prometheus exposition.
func (h *MonitorHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// HandleStats handles GET /stats.
func (h *MonitorHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind("api.stats", ErrUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
