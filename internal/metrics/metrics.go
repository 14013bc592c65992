package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

// Metrics holds all Prometheus metrics of the proxy.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	SessionAcquisitions    *prometheus.CounterVec
	SessionAcquireDuration prometheus.Histogram
	SessionInvalidations   prometheus.Counter

	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram

	PortalRequests        *prometheus.CounterVec
	PortalRequestDuration prometheus.Histogram

	CacheLookups *prometheus.CounterVec
}

// New creates all metrics and registers them at the given registerer
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		SessionAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "impds_session_acquisitions_total",
			Help: "Total portal session acquisitions by result",
		}, []string{"result"}), // result: "success", "timeout", "format", "failure"

		SessionAcquireDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "impds_session_acquire_duration_seconds",
			Help:    "Duration of credential acquirer invocations",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),

		SessionInvalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "impds_session_invalidations_total",
			Help: "Total explicit invalidations of the cached portal session",
		}),

		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "impds_searches_total",
			Help: "Total searches by outcome",
		}, []string{"outcome"}),

		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "impds_search_duration_seconds",
			Help:    "Duration of complete searches including session acquisition",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		PortalRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "impds_portal_requests_total",
			Help: "Total requests sent to the portal by response class",
		}, []string{"class"}), // class: "2xx", "4xx", "5xx", "error"

		PortalRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "impds_portal_request_duration_seconds",
			Help:    "Duration of portal search requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "impds_result_cache_lookups_total",
			Help: "Total result cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// ObserveSessionAcquisition records a single credential acquirer invocation
func (m *Metrics) ObserveSessionAcquisition(result string, d time.Duration) {
	if m != nil {
		m.SessionAcquisitions.WithLabelValues(result).Inc()
		m.SessionAcquireDuration.Observe(d.Seconds())
	}
}

// IncrementSessionInvalidations records an explicit session invalidation
func (m *Metrics) IncrementSessionInvalidations() {
	if m != nil {
		m.SessionInvalidations.Inc()
	}
}

// ObserveSearch records a finished search
func (m *Metrics) ObserveSearch(outcome string, d time.Duration) {
	if m != nil {
		m.Searches.WithLabelValues(outcome).Inc()
		m.SearchDuration.Observe(d.Seconds())
	}
}

// ObservePortalRequest records a single request sent to the portal
func (m *Metrics) ObservePortalRequest(class string, d time.Duration) {
	if m != nil {
		m.PortalRequests.WithLabelValues(class).Inc()
		m.PortalRequestDuration.Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a result cache lookup
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
