/*
Package metrics provides Prometheus metrics collection and exposition for
the flowplane control plane.

The package defines and registers all flowplane metrics using the
Prometheus client library: resource inventory gauges, xDS session and
rebuild counters, HTTP API instrumentation, and materializer operation
latency. Metrics are exposed via an HTTP endpoint for scraping by
Prometheus.

# Metrics Catalog

Resource Inventory:

flowplane_clusters_total, flowplane_listeners_total,
flowplane_route_configurations_total, flowplane_secrets_total,
flowplane_api_definitions_total, flowplane_teams_total:
  - Type: Gauge
  - Description: Current row count for each resource table, polled by
    Collector every 15 seconds.

xDS Control Plane:

flowplane_xds_sessions_total:
  - Type: Gauge
  - Description: Number of currently open ADS streams

flowplane_xds_sessions_evicted_total:
  - Type: Counter
  - Description: Sessions closed by the idle-TTL sweep

flowplane_xds_discovery_requests_total{type_url, result}:
  - Type: Counter
  - Description: DiscoveryRequests received, by type URL and ack/nack/initial

flowplane_xds_rebuilds_total, flowplane_xds_rebuild_duration_seconds:
  - Type: Counter / Histogram
  - Description: Resource cache rebuild count and duration

flowplane_xds_snapshot_version{scope, type_url}:
  - Type: Gauge
  - Description: Version last served for a (scope, type_url) pair

HTTP API:

flowplane_api_requests_total{route, status}:
  - Type: Counter
flowplane_api_request_duration_seconds{route}:
  - Type: Histogram
flowplane_auth_failures_total{reason}:
  - Type: Counter

Materializer:

flowplane_materializer_operations_total{operation, status}:
  - Type: Counter
flowplane_materializer_operation_duration_seconds{operation}:
  - Type: Histogram

Secrets:

flowplane_secret_resolve_duration_seconds{backend}:
  - Type: Histogram
flowplane_secret_resolve_failures_total{backend}:
  - Type: Counter

# Usage

	import "github.com/flowplane/flowplane/pkg/metrics"

	timer := metrics.NewTimer()
	err := materializeDefinition(ctx, spec)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MaterializerOperationsTotal.WithLabelValues("create", status).Inc()
	timer.ObserveDurationVec(metrics.MaterializerOperationDuration, "create")

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Gauges that describe storage state (resource counts, session count) are
polled on an interval by Collector rather than pushed by the code paths
that change them — this mirrors how the rest of the control plane treats
storage as the source of truth and the cache as a derived view. Counters
and histograms that describe an event (an API request, an xDS rebuild)
are updated inline at the call site instead, since a poll loop cannot
observe a duration it did not witness. The materializer and secret
metrics are registered, but no code in this repository updates them.

All metrics are registered at package init via MustRegister, which panics
on a duplicate registration — this is deliberate: a second metric sharing
a name is a collision bug, not a runtime condition to recover from.
*/
package metrics
