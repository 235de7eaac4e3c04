/*
Package metrics provides Prometheus metrics collection and exposition for
the horao peer process.

Metrics are registered at package init and exposed via an HTTP handler for
scraping by a Prometheus server.

# Metrics Catalog

Model gauges:

horao_resources_total{kind, state}: total resources by kind and state.
horao_datacenters_total: total number of datacenters.
horao_claims_total{status}: total claims by status.

CRDT merge metrics:

horao_merge_duration_seconds: time to merge a remote model snapshot.
horao_merges_total: total merges performed.

Scheduler metrics:

horao_admission_latency_seconds: time to admit or reject a claim.
horao_claims_admitted_total / horao_claims_rejected_total: admission outcomes.
horao_placement_duration_seconds: time to place an admitted claim.
horao_reconciliation_duration_seconds / horao_reconciliation_cycles_total:
scheduler reconciliation loop timing.

Controller metrics:

horao_controller_pull_duration_seconds{adapter}: adapter pull timing.
horao_controller_errors_total{adapter}: adapter pull and placement-hook
errors.

Gossip / sync metrics:

horao_gossip_queue_depth{peer}: pending delta batches queued per peer.
horao_gossip_flushes_total{peer, trigger}: backpressure flushes by trigger
(sync_delta, sync_max, or overflow).
horao_sync_auth_failures_total{reason}: rejected peer messages by reason
(hmac, skew, unknown_peer).
horao_sync_transport_errors_total{peer}: websocket failures by peer.
horao_deltas_applied_total{origin}: merged delta batches by origin peer.
horao_clock_skew_ms{accepted}: remote timestamp skew distribution.

Store metrics:

horao_snapshot_duration_seconds / horao_snapshots_total: snapshot writes.
horao_store_errors_total{op}: persistence I/O failures by operation.

# Usage

	import "github.com/witlox/horao/pkg/metrics"

	metrics.ResourcesTotal.WithLabelValues("compute", "active").Set(12)
	metrics.ClaimsAdmitted.Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.AdmissionLatency)

	http.Handle("/metrics", metrics.Handler())

The package also provides the peer's health surface (health.go): a
Health value holds named probes run at request time and backs the
/health, /ready, and /live endpoints.

# Design Patterns

All metrics are registered once in init() via MustRegister, live as
package-level variables, and are safe for concurrent use from any
goroutine. Label sets are kept low-cardinality (kind, state, status,
peer id, adapter name) — never resource or claim ids.
*/
package metrics
