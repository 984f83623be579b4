package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-billing/pkg/apperrors"
)

// Outcome labels shared by the read-model operations.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeUpstream   = "upstream"
	OutcomeError      = "error"
)

// OutcomeOf maps an operation error onto an outcome label.
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return OutcomeValidation
	case apperrors.ErrorTypeNotFound:
		return OutcomeNotFound
	case apperrors.ErrorTypeUpstream:
		return OutcomeUpstream
	}
	return OutcomeError
}

// EngineMetrics exposes counters/histograms for the billing and reporting
// read-models.
type EngineMetrics struct {
	requestsTotal  *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	ledgerLines    prometheus.Histogram
	rateLimited    prometheus.Counter
	limiterErrored prometheus.Counter
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total read-model computations by operation and outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "engine",
			Name:      "latency_seconds",
			Help:      "Latency of read-model computations including record fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ledgerLines: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "engine",
			Name:      "ledger_lines",
			Help:      "Transactions synthesized per patient ledger",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-clinic rate limit",
		}),
		limiterErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "rate_limit_errors_total",
			Help:      "Rate limit checks that failed open because redis was unavailable",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.latency, m.ledgerLines, m.rateLimited, m.limiterErrored)
	return m
}

// ObserveRequest records one computation and how long it took.
func (m *EngineMetrics) ObserveRequest(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *EngineMetrics) ObserveLedgerLines(n int) {
	if m == nil {
		return
	}
	m.ledgerLines.Observe(float64(n))
}

func (m *EngineMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *EngineMetrics) ObserveLimiterError() {
	if m == nil {
		return
	}
	m.limiterErrored.Inc()
}
