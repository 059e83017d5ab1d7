package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Solve outcomes used as the "outcome" label of solve metrics.
const (
	OutcomeOptimal    = "optimal"
	OutcomeBestEffort = "best_effort"
	OutcomeInfeasible = "infeasible"
	OutcomeCancelled  = "cancelled"
	OutcomeFailed     = "failed"
)

// Manager manages all Prometheus metrics for the coaching plan service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Requirement calculation
	sessionsComputed   prometheus.Counter
	validationErrors   prometheus.Counter
	computationFaults  prometheus.Counter
	calculationLatency prometheus.Histogram

	// Rule table
	ruleReloads    *prometheus.CounterVec
	ruleCategories prometheus.Gauge
	ruleTableSwaps prometheus.Counter

	// Optimizer
	solveRuns         *prometheus.CounterVec
	solveLatency      prometheus.Histogram
	solveIterations   prometheus.Histogram
	solveObjective    prometheus.Gauge
	understaffedUnits prometheus.Gauge
	duplicatePlans    prometheus.Counter

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Plan store
	storeLatency *prometheus.HistogramVec
	plansStored  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
}

// defaultLatencyBuckets spans 1ms to roughly 33s; every latency is recorded in ms.
var defaultLatencyBuckets = prometheus.ExponentialBuckets(1, 2, 16) //nolint:gochecknoglobals // read-only

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "coachplan",
		subsystem:        "planner",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.sessionsComputed = auto.NewCounter(m.counter("sessions_computed_total",
		"Total number of sessions whose coaching requirement was computed"))
	m.validationErrors = auto.NewCounter(m.counter("validation_errors_total",
		"Total number of rejected session rows"))
	m.computationFaults = auto.NewCounter(m.counter("computation_faults_total",
		"Total number of validated sessions that matched no baseline range"))
	m.calculationLatency = auto.NewHistogram(m.histogram("calculation_latency_milliseconds",
		"Latency of requirement batches in milliseconds", m.histogramBuckets))

	m.ruleReloads = auto.NewCounterVec(m.counter("rule_reloads_total",
		"Rule table reload attempts by outcome"), []string{"outcome"})
	m.ruleCategories = auto.NewGauge(m.gauge("rule_categories",
		"Number of session categories in the active rule table"))
	m.ruleTableSwaps = auto.NewCounter(m.counter("rule_table_swaps_total",
		"Total number of times the active rule table was replaced"))

	m.solveRuns = auto.NewCounterVec(m.counter("solve_runs_total",
		"Optimizer runs by outcome"), []string{"outcome"})
	m.solveLatency = auto.NewHistogram(m.histogram("solve_latency_milliseconds",
		"Optimizer wall time in milliseconds",
		[]float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 120000}))
	m.solveIterations = auto.NewHistogram(m.histogram("solve_iterations",
		"Local search iterations per optimizer run",
		prometheus.ExponentialBuckets(10, 4, 10)))
	m.solveObjective = auto.NewGauge(m.gauge("solve_objective",
		"Objective value of the last finished optimizer run"))
	m.understaffedUnits = auto.NewGauge(m.gauge("understaffed_units",
		"Coach slots left unfilled by the last optimizer run"))
	m.duplicatePlans = auto.NewCounter(m.counter("plan_duplicates_total",
		"Plan requests answered from an identical earlier request"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size",
		"Current number of pending plan jobs"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity",
		"Maximum number of pending plan jobs"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio",
		"Queue utilization ratio (current size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueue_total",
		"Total number of plan jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeue_total",
		"Total number of plan jobs dequeued"))
	m.queueRejected = auto.NewCounter(m.counter("queue_enqueue_errors_total",
		"Total number of plan jobs rejected by a full or closed queue"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count",
		"Number of plan workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count",
		"Number of workers currently solving"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds",
		"Time from dequeue to stored result in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total",
		"Total number of plan jobs that ended in an error"))

	m.storeLatency = auto.NewHistogramVec(m.histogram("store_latency_milliseconds",
		"Plan store operation latency in milliseconds", m.histogramBuckets), []string{"operation"})
	m.plansStored = auto.NewGauge(m.gauge("plans_stored",
		"Number of plans held by the plan store"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total",
		"Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"})
}

// RecordSessionsComputed adds n computed sessions.
func RecordSessionsComputed(n int) {
	globalManager.sessionsComputed.Add(float64(n))
}

// RecordValidationErrors adds n rejected rows.
func RecordValidationErrors(n int) {
	globalManager.validationErrors.Add(float64(n))
}

// RecordComputationFault increments the computation fault counter.
func RecordComputationFault() {
	globalManager.computationFaults.Inc()
}

// RecordCalculationLatency records requirement batch latency.
func RecordCalculationLatency(latencyMs float64) {
	globalManager.calculationLatency.Observe(latencyMs)
}

// RecordRuleReload counts a reload attempt with outcome "applied" or "rejected".
func RecordRuleReload(outcome string) {
	globalManager.ruleReloads.WithLabelValues(outcome).Inc()
}

// RecordRuleTableSwap counts an activated rule table and its category count.
func RecordRuleTableSwap(categories int) {
	globalManager.ruleTableSwaps.Inc()
	globalManager.ruleCategories.Set(float64(categories))
}

// RecordSolve records one finished optimizer run.
func RecordSolve(outcome string, latencyMs float64, iterations int) {
	globalManager.solveRuns.WithLabelValues(outcome).Inc()
	globalManager.solveLatency.Observe(latencyMs)
	globalManager.solveIterations.Observe(float64(iterations))
}

// UpdateSolveQuality sets the objective and unfilled slots of the last run.
func UpdateSolveQuality(objective float64, understaffed int) {
	globalManager.solveObjective.Set(objective)
	globalManager.understaffedUnits.Set(float64(understaffed))
}

// RecordPlanDuplicate increments the duplicate plan request counter.
func RecordPlanDuplicate() {
	globalManager.duplicatePlans.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive moves the active worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordStoreLatency records the latency of a plan store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdatePlansStored sets the number of stored plans.
func UpdatePlansStored(count int) {
	globalManager.plansStored.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
