package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resource inventory metrics
	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_clusters_total",
			Help: "Total number of cluster resources across all teams",
		},
	)

	ListenersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_listeners_total",
			Help: "Total number of listener resources across all teams",
		},
	)

	RouteConfigurationsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_route_configurations_total",
			Help: "Total number of route configuration resources across all teams",
		},
	)

	SecretsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_secrets_total",
			Help: "Total number of secret resources across all teams",
		},
	)

	ApiDefinitionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_api_definitions_total",
			Help: "Total number of api_definition resources across all teams",
		},
	)

	TeamsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_teams_total",
			Help: "Total number of teams",
		},
	)

	// xDS control plane metrics
	XDSSessionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowplane_xds_sessions_total",
			Help: "Number of currently connected ADS streams",
		},
	)

	XDSSessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowplane_xds_sessions_evicted_total",
			Help: "Total number of ADS sessions closed by the idle-TTL sweep",
		},
	)

	XDSDiscoveryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowplane_xds_discovery_requests_total",
			Help: "Total number of DiscoveryRequests received by type URL and outcome",
		},
		[]string{"type_url", "result"}, // result: ack, nack, initial
	)

	XDSRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowplane_xds_rebuilds_total",
			Help: "Total number of resource cache rebuilds",
		},
	)

	XDSRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowplane_xds_rebuild_duration_seconds",
			Help:    "Time taken to reload storage and rebuild the xDS resource cache",
			Buckets: prometheus.DefBuckets,
		},
	)

	XDSSnapshotVersion = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowplane_xds_snapshot_version",
			Help: "Current version number served for a scope/type_url pair",
		},
		[]string{"scope", "type_url"},
	)

	// HTTP API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowplane_api_requests_total",
			Help: "Total number of HTTP API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowplane_api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowplane_auth_failures_total",
			Help: "Total number of rejected API authentication attempts by reason",
		},
		[]string{"reason"},
	)

	// Materializer (definition -> cluster/route/listener) operation metrics
	MaterializerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowplane_materializer_operations_total",
			Help: "Total number of materializer operations by kind and outcome",
		},
		[]string{"operation", "status"}, // operation: create, append_route, update, delete, from_openapi
	)

	MaterializerOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowplane_materializer_operation_duration_seconds",
			Help:    "Materializer operation duration in seconds by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Secret resolution metrics
	SecretResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowplane_secret_resolve_duration_seconds",
			Help:    "Time taken to resolve secret material through a backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	SecretResolveFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowplane_secret_resolve_failures_total",
			Help: "Total number of failed secret resolutions by backend",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(ListenersTotal)
	prometheus.MustRegister(RouteConfigurationsTotal)
	prometheus.MustRegister(SecretsTotal)
	prometheus.MustRegister(ApiDefinitionsTotal)
	prometheus.MustRegister(TeamsTotal)

	prometheus.MustRegister(XDSSessionsTotal)
	prometheus.MustRegister(XDSSessionsEvictedTotal)
	prometheus.MustRegister(XDSDiscoveryRequestsTotal)
	prometheus.MustRegister(XDSRebuildsTotal)
	prometheus.MustRegister(XDSRebuildDuration)
	prometheus.MustRegister(XDSSnapshotVersion)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(AuthFailuresTotal)

	prometheus.MustRegister(MaterializerOperationsTotal)
	prometheus.MustRegister(MaterializerOperationDuration)

	prometheus.MustRegister(SecretResolveDuration)
	prometheus.MustRegister(SecretResolveFailuresTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
