package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the display device.
type Metrics struct {
	// Weather fetch metrics.
	FetchRequests    *prometheus.CounterVec   // labels: kind={metar,taf}, outcome={success,error,empty}
	FetchCache       *prometheus.CounterVec   // labels: result={hit,miss}
	FetchAPIDuration *prometheus.HistogramVec // labels: kind={metar,taf}
	SnapshotAge      *prometheus.GaugeVec     // labels: kind={metar,taf}

	// Display metrics.
	PagesRendered prometheus.Counter

	// Device lifecycle metrics.
	StateTransitions *prometheus.CounterVec // labels: state
	HardwareResets   *prometheus.CounterVec // labels: reason
	PortalRequests   *prometheus.CounterVec // labels: route={save,page}, status
}

// NewMetrics creates and registers all device metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchCache,
		m.FetchAPIDuration,
		m.SnapshotAge,
		m.PagesRendered,
		m.StateTransitions,
		m.HardwareResets,
		m.PortalRequests,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar_display",
			Name:      "fetch_requests_total",
			Help:      "Report API requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar_display",
			Name:      "fetch_cache_total",
			Help:      "Fetch cycles served from the last good snapshots (hit) or from the API (miss).",
		}, []string{"result"}),
		FetchAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "metar_display",
			Name:      "fetch_api_duration_seconds",
			Help:      "Report API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		SnapshotAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "metar_display",
			Name:      "snapshot_age_seconds",
			Help:      "Age of the displayed report at the end of the last fetch cycle.",
		}, []string{"kind"}),
		PagesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metar_display",
			Name:      "pages_rendered_total",
			Help:      "Report pages drawn on the display.",
		}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar_display",
			Name:      "state_transitions_total",
			Help:      "Device state machine entries by state.",
		}, []string{"state"}),
		HardwareResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar_display",
			Name:      "hardware_resets_total",
			Help:      "Reset line pulses by reason.",
		}, []string{"reason"}),
		PortalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar_display",
			Name:      "portal_requests_total",
			Help:      "Provisioning portal requests by route and status code.",
		}, []string{"route", "status"}),
	}
}
