package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Signal pipeline metrics
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobSkipped     *prometheus.CounterVec
	quotes         *prometheus.CounterVec
	events         *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	signalsExpired prometheus.Counter
	openSymbols    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Signal pipeline metrics
	r.jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalwatch_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)
	r.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalwatch_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)
	r.jobSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalwatch_job_skipped_total",
			Help: "Ticks skipped because the previous run of the job was still in progress",
		},
		[]string{"job"},
	)
	r.quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalwatch_quotes_total",
			Help: "Quote fetches by result",
		},
		[]string{"result"},
	)
	r.events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalwatch_events_total",
			Help: "Threshold events fired by kind",
		},
		[]string{"kind"},
	)
	r.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalwatch_notifications_total",
			Help: "Notifications sent by notifier and status",
		},
		[]string{"notifier", "status"},
	)
	r.signalsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signalwatch_signals_expired_total",
			Help: "Signals force-closed after their holding period",
		},
	)
	r.openSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalwatch_open_symbols",
			Help: "Number of distinct symbols with open signals at the last price update",
		},
	)

	reg.MustRegister(r.jobRuns)
	reg.MustRegister(r.jobDuration)
	reg.MustRegister(r.jobSkipped)
	reg.MustRegister(r.quotes)
	reg.MustRegister(r.events)
	reg.MustRegister(r.notifications)
	reg.MustRegister(r.signalsExpired)
	reg.MustRegister(r.openSymbols)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordJob records a completed job run.
func (r *Registry) RecordJob(job, status string, duration float64) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(job, status).Inc()
	r.jobDuration.WithLabelValues(job).Observe(duration)
}

// RecordJobSkipped records a tick dropped by the job guard.
func (r *Registry) RecordJobSkipped(job string) {
	if r == nil {
		return
	}
	r.jobSkipped.WithLabelValues(job).Inc()
}

// RecordQuote records a quote fetch outcome (ok, empty, error).
func (r *Registry) RecordQuote(result string) {
	if r == nil {
		return
	}
	r.quotes.WithLabelValues(result).Inc()
}

// RecordEvent records a fired threshold event.
func (r *Registry) RecordEvent(kind string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(kind).Inc()
}

// RecordNotification records a notifier delivery.
func (r *Registry) RecordNotification(notifier, status string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(notifier, status).Inc()
}

// AddExpired records signals closed by the expiry sweep.
func (r *Registry) AddExpired(n int64) {
	if r == nil {
		return
	}
	r.signalsExpired.Add(float64(n))
}

// SetOpenSymbols sets the open symbol count.
func (r *Registry) SetOpenSymbols(n int) {
	if r == nil {
		return
	}
	r.openSymbols.Set(float64(n))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
