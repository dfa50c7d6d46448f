package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stub_dispatch_requests_total",
			Help: "Requests received on the /api surface.",
		},
		[]string{"verb", "status_code"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stub_dispatch_duration_seconds",
			Help:    "Duration of dispatch in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	DispatchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stub_dispatch_outcomes_total",
			Help: "Dispatch outcomes: matched, no_route, missing_headers, malformed_configuration.",
		},
		[]string{"outcome"},
	)

	ControlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stub_control_requests_total",
			Help: "Control plane calls by operation.",
		},
		[]string{"operation", "status_code"},
	)

	ConfiguredRoutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stub_configured_routes",
			Help: "Number of routes currently configured, per stub instance.",
		},
		[]string{"instance"},
	)

	RecordedRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stub_recorded_requests",
			Help: "Number of requests currently held in the ledger, per stub instance.",
		},
		[]string{"instance"},
	)

	JournalDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stub_journal_dropped_total",
			Help: "Journal entries dropped because the queue was full.",
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers the collectors with the default registry.
// Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DispatchRequestsTotal,
			DispatchDuration,
			DispatchOutcomesTotal,
			ControlRequestsTotal,
			ConfiguredRoutes,
			RecordedRequests,
			JournalDroppedTotal,
		)
	})
}

// ForgetInstance drops the per-instance gauges of a stopped stub
func ForgetInstance(instance string) {
	ConfiguredRoutes.DeleteLabelValues(instance)
	RecordedRequests.DeleteLabelValues(instance)
}

func PromHTTPHandler() http.Handler {
	return promhttp.Handler()
}
