package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the racer's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	catalogFetches   *prometheus.CounterVec
	catalogRecords   *prometheus.GaugeVec
	availableClasses *prometheus.GaugeVec
	attempts         *prometheus.CounterVec
	enrolled         prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	catalogFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "racer_catalog_fetches_total",
		Help: "Catalog page fetches by bucket and result",
	}, []string{"bucket", "result"})

	catalogRecords := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "racer_catalog_records",
		Help: "Class records seen in the last completed fetch of a bucket",
	}, []string{"bucket"})

	availableClasses := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "racer_available_classes",
		Help: "Currently available classes per tracked course",
	}, []string{"course"})

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "racer_enroll_attempts_total",
		Help: "Enrollment submissions by job and result",
	}, []string{"job", "result"})

	enrolled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "racer_enrolled_total",
		Help: "Jobs that reached a successful enrollment",
	})

	registry.MustRegister(catalogFetches, catalogRecords, availableClasses, attempts, enrolled)

	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		catalogFetches:   catalogFetches,
		catalogRecords:   catalogRecords,
		availableClasses: availableClasses,
		attempts:         attempts,
		enrolled:         enrolled,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return m.handler
}

func (m *Metrics) ObserveFetch(bucket string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogFetches.WithLabelValues(bucket, result).Inc()
}

func (m *Metrics) SetCatalogRecords(bucket string, n int) {
	if m == nil {
		return
	}
	m.catalogRecords.WithLabelValues(bucket).Set(float64(n))
}

func (m *Metrics) SetAvailable(course string, n int) {
	if m == nil {
		return
	}
	m.availableClasses.WithLabelValues(course).Set(float64(n))
}

func (m *Metrics) ObserveAttempt(job string, success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "succeeded"
		m.enrolled.Inc()
	}
	m.attempts.WithLabelValues(job, result).Inc()
}
