package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsrun/internal/infrastructure/logging"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec

	// Execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ConsoleRecords    *prometheus.CounterVec
	ModuleLoads       *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex

	logger   *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// Option customises Metrics.
type Option func(*Metrics)

// WithLogger sets the logger used by the background updater.
func WithLogger(l *zap.Logger) Option {
	return func(m *Metrics) { m.logger = l }
}

// Snapshot holds running totals for the JSON view.
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	Executions      int64   `json:"executions"`
	FailedExecs     int64   `json:"failed_executions"`
	TotalExecTimeMS float64 `json:"total_execution_ms"`
}

// NewMetrics creates a metrics collector on its own registry, so several
// collectors can coexist in one process.
func NewMetrics(opts ...Option) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		stop:      make(chan struct{}),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsrun_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsrun_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsrun_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Execution metrics
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsrun_executions_total",
				Help: "Total number of snippet executions by outcome",
			},
			[]string{"status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsrun_execution_duration_seconds",
				Help:    "Snippet execution duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		ConsoleRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsrun_console_records_total",
				Help: "Total number of captured console records",
			},
			[]string{"level"},
		),
		ModuleLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsrun_module_loads_total",
				Help: "Total number of require() loads",
			},
			[]string{"kind", "status"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "jsrun_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	m.logger = zap.NewNop()
	for _, opt := range opts {
		opt(m)
	}
	logging.Go(m.logger, "uptime-updater", m.updateUptime)

	return m
}

// updateUptime refreshes the uptime gauge until Close.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// Close stops the uptime updater.
func (m *Metrics) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveExecution records a finished snippet execution.
func (m *Metrics) ObserveExecution(status string, d time.Duration) {
	m.Executions.WithLabelValues(status).Inc()
	m.ExecutionDuration.WithLabelValues(status).Observe(d.Seconds())

	m.mu.Lock()
	m.snapshot.Executions++
	if status != "ok" {
		m.snapshot.FailedExecs++
	}
	m.snapshot.TotalExecTimeMS += float64(d) / float64(time.Millisecond)
	m.mu.Unlock()
}

// ObserveConsole counts one captured console record.
func (m *Metrics) ObserveConsole(level string) {
	m.ConsoleRecords.WithLabelValues(level).Inc()
}

// ObserveModuleLoad counts one require() attempt.
func (m *Metrics) ObserveModuleLoad(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModuleLoads.WithLabelValues(kind, status).Inc()
}

// Snapshot returns the current running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
