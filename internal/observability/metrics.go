package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cadlift"

// Metrics holds the pipeline collectors on a private registry, so several
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	qualityScore   prometheus.Histogram
	repairAttempts prometheus.Histogram
	activeJobs     prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished generation jobs by status and error kind",
		},
		[]string{"status", "error_kind"},
	)
	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 180, 600},
		},
		[]string{"stage"},
	)
	m.qualityScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "quality_score",
		Help:      "Overall quality score of accepted meshes",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})
	m.repairAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "repair_attempts",
		Help:      "Repair attempts per job",
		Buckets:   prometheus.LinearBuckets(0, 1, 8),
	})
	m.activeJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_jobs",
		Help:      "Jobs currently running",
	})
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	reg.MustRegister(
		m.jobsTotal, m.stageDuration, m.qualityScore, m.repairAttempts, m.activeJobs, m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobStarted marks a job as running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.activeJobs.Inc()
}

// JobFinished counts a finished job. errorKind is empty on success.
func (m *Metrics) JobFinished(status, errorKind string) {
	if m == nil {
		return
	}
	m.activeJobs.Dec()
	m.jobsTotal.WithLabelValues(status, errorKind).Inc()
}

// JobAbandoned counts a job that finished without ever starting.
func (m *Metrics) JobAbandoned(status, errorKind string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status, errorKind).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveQuality records the accepted score and the attempts it took.
func (m *Metrics) ObserveQuality(score float64, attempts int) {
	if m == nil {
		return
	}
	m.qualityScore.Observe(score)
	m.repairAttempts.Observe(float64(attempts))
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
