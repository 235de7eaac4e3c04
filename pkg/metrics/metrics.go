package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Model metrics
	ResourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "horao_resources_total",
			Help: "Total number of resources by kind and state",
		},
		[]string{"kind", "state"},
	)

	DatacentersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horao_datacenters_total",
			Help: "Total number of datacenters",
		},
	)

	ClaimsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "horao_claims_total",
			Help: "Total number of claims by status",
		},
		[]string{"status"},
	)

	// CRDT merge metrics
	MergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horao_merge_duration_seconds",
			Help:    "Time taken to merge a remote model snapshot in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horao_merges_total",
			Help: "Total number of model merges performed",
		},
	)

	// Scheduler metrics
	AdmissionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horao_admission_latency_seconds",
			Help:    "Time taken to admit or reject a claim in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClaimsAdmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horao_claims_admitted_total",
			Help: "Total number of claims admitted",
		},
	)

	ClaimsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horao_claims_rejected_total",
			Help: "Total number of claims rejected",
		},
	)

	PlacementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horao_placement_duration_seconds",
			Help:    "Time taken to place an admitted claim in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reconciliation / controller pull metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horao_reconciliation_duration_seconds",
			Help:    "Time taken for a scheduler reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horao_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	ControllerPullDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horao_controller_pull_duration_seconds",
			Help:    "Time taken for a controller adapter pull in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)

	ControllerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horao_controller_errors_total",
			Help: "Total number of controller adapter errors by adapter",
		},
		[]string{"adapter"},
	)

	// Gossip / sync metrics
	GossipQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "horao_gossip_queue_depth",
			Help: "Pending delta batches queued for a peer",
		},
		[]string{"peer"},
	)

	GossipFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horao_gossip_flushes_total",
			Help: "Total number of backpressure flushes by trigger",
		},
		[]string{"peer", "trigger"},
	)

	SyncAuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horao_sync_auth_failures_total",
			Help: "Total number of rejected peer messages by reason",
		},
		[]string{"reason"},
	)

	SyncTransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horao_sync_transport_errors_total",
			Help: "Total number of websocket transport failures by peer",
		},
		[]string{"peer"},
	)

	DeltasAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horao_deltas_applied_total",
			Help: "Total number of remote delta batches merged by origin peer",
		},
		[]string{"origin"},
	)

	ClockSkewMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horao_clock_skew_ms",
			Help:    "Absolute wall-clock skew of remote timestamps in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"accepted"},
	)

	// Store metrics
	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horao_snapshot_duration_seconds",
			Help:    "Time taken to write a full snapshot in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "horao_snapshots_total",
			Help: "Total number of snapshots written",
		},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horao_store_errors_total",
			Help: "Total number of persistence I/O failures by operation",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(ResourcesTotal)
	prometheus.MustRegister(DatacentersTotal)
	prometheus.MustRegister(ClaimsTotal)
	prometheus.MustRegister(MergeDuration)
	prometheus.MustRegister(MergesTotal)
	prometheus.MustRegister(AdmissionLatency)
	prometheus.MustRegister(ClaimsAdmitted)
	prometheus.MustRegister(ClaimsRejected)
	prometheus.MustRegister(PlacementDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ControllerPullDuration)
	prometheus.MustRegister(ControllerErrorsTotal)
	prometheus.MustRegister(GossipQueueDepth)
	prometheus.MustRegister(GossipFlushesTotal)
	prometheus.MustRegister(SyncAuthFailuresTotal)
	prometheus.MustRegister(SyncTransportErrorsTotal)
	prometheus.MustRegister(DeltasAppliedTotal)
	prometheus.MustRegister(ClockSkewMs)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(StoreErrorsTotal)
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

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
