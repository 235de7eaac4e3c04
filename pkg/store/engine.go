package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/log"
	"github.com/witlox/horao/pkg/metrics"
	"github.com/witlox/horao/pkg/model"
)

// Engine persists a Model's state through a Sink at bounded cadence: a
// full snapshot every intervalOps recorded delta batches (RecordDelta
// calls, not individual ops inside them) or every interval, whichever
// comes first, plus an append-only log of every delta recorded in
// between. On Load it reconstructs the materialized state by applying the
// latest snapshot and then every delta logged since, mirroring the
// teacher's ticker-driven background-writer shape (pkg/reconciler.go)
// over a different persistence contract.
type Engine struct {
	sink   Sink
	model  *model.Model
	peerID string

	intervalOps int
	interval    time.Duration

	mu      sync.Mutex
	opCount int
	stopCh  chan struct{}
	logger  zerolog.Logger
}

// NewEngine builds a snapshot/delta engine over sink and m. intervalOps<=0
// disables the op-count trigger; interval<=0 disables the timer trigger
// (at least one should be set for the cadence to ever fire on its own —
// RecordDelta/Snapshot can always be called directly regardless).
func NewEngine(sink Sink, m *model.Model, peerID string, intervalOps int, interval time.Duration) *Engine {
	return &Engine{
		sink:        sink,
		model:       m,
		peerID:      peerID,
		intervalOps: intervalOps,
		interval:    interval,
		stopCh:      make(chan struct{}),
		logger:      log.WithComponent("store"),
	}
}

// Start begins the snapshot cadence loop. A no-op if interval<=0.
func (e *Engine) Start() {
	if e.interval <= 0 {
		return
	}
	go e.run()
}

// Stop stops the cadence loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

func (e *Engine) run() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info().Msg("store engine started")
	for {
		select {
		case <-ticker.C:
			if err := e.Snapshot(); err != nil {
				e.logger.Error().Err(err).Msg("scheduled snapshot failed")
			}
		case <-e.stopCh:
			e.logger.Info().Msg("store engine stopped")
			return
		}
	}
}

// RecordDelta persists a batch of operations originating from origin
// (the local peer_id for locally-applied writes, or a remote peer_id for
// merged gossip deltas) at ts, and counts it toward the op-count snapshot
// trigger.
func (e *Engine) RecordDelta(origin string, ts clock.Timestamp, d model.Delta) error {
	data, err := json.Marshal(d)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("encode_delta").Inc()
		return &StoreError{Op: "encode_delta", Err: err}
	}
	if err := e.sink.Put(deltaKey(origin, ts), data); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("put_delta").Inc()
		return &StoreError{Op: "put_delta", Err: err}
	}

	e.mu.Lock()
	e.opCount++
	due := e.intervalOps > 0 && e.opCount >= e.intervalOps
	if due {
		e.opCount = 0
	}
	e.mu.Unlock()

	if due {
		if err := e.Snapshot(); err != nil {
			e.logger.Error().Err(err).Msg("op-count-triggered snapshot failed")
		}
	}
	return nil
}

// Snapshot writes a full dump of the model's current state and updates
// meta/self to point at it.
func (e *Engine) Snapshot() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnapshotDuration)

	ts := clock.Timestamp{}
	if hwm, ok := e.highWaterMark(); ok {
		ts = hwm
	}

	full := e.model.Delta(clock.Zero)
	data, err := json.Marshal(full)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("encode_snapshot").Inc()
		return &StoreError{Op: "encode_snapshot", Err: err}
	}
	if err := e.sink.Put(snapshotKey(ts), data); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("put_snapshot").Inc()
		return &StoreError{Op: "put_snapshot", Err: err}
	}

	meta := selfMeta{PeerID: e.peerID, SchemaVer: SchemaVersion, LastSnapshotTs: ts}
	metaData, err := json.Marshal(meta)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("encode_meta").Inc()
		return &StoreError{Op: "encode_meta", Err: err}
	}
	if err := e.sink.Put(metaSelfKey, metaData); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("put_meta").Inc()
		return &StoreError{Op: "put_meta", Err: err}
	}

	metrics.SnapshotsTotal.Inc()
	e.logger.Debug().Str("ts", ts.String()).Msg("snapshot written")
	return nil
}

// highWaterMark scans the delta log for the greatest timestamp recorded,
// used to self-describe a snapshot with the clock position it reflects.
func (e *Engine) highWaterMark() (clock.Timestamp, bool) {
	entries, err := e.sink.Scan(deltaPrefix)
	if err != nil {
		return clock.Timestamp{}, false
	}
	hwm := clock.Timestamp{}
	found := false
	for _, kv := range entries {
		idx := lastSlash(kv.Key)
		if idx < 0 {
			continue
		}
		if ts, ok := parseTsKey(kv.Key[idx+1:]); ok {
			if !found || hwm.Less(ts) {
				hwm = ts
				found = true
			}
		}
	}
	return hwm, found
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// Load reconstructs the model from the latest snapshot plus every delta
// recorded since, and returns the resulting clock high-water mark. A
// cold-start sink (nothing persisted yet) returns clock.Zero, nil.
func (e *Engine) Load() (clock.Timestamp, error) {
	metaData, ok, err := e.sink.Get(metaSelfKey)
	if err != nil {
		return clock.Timestamp{}, &StoreError{Op: "get_meta", Err: err}
	}
	if !ok {
		return e.loadFromLatestSnapshotKey()
	}
	var meta selfMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return clock.Timestamp{}, &StoreError{Op: "decode_meta", Err: err}
	}
	if meta.SchemaVer != SchemaVersion {
		return clock.Timestamp{}, &SchemaVersionError{Found: meta.SchemaVer, Want: SchemaVersion}
	}

	hwm := meta.LastSnapshotTs
	snapData, ok, err := e.sink.Get(snapshotKey(meta.LastSnapshotTs))
	if err != nil {
		return clock.Timestamp{}, &StoreError{Op: "get_snapshot", Err: err}
	}
	if ok {
		var d model.Delta
		if err := json.Unmarshal(snapData, &d); err != nil {
			return clock.Timestamp{}, &StoreError{Op: "decode_snapshot", Err: err}
		}
		e.model.ApplyDelta(d)
	}

	return e.replayDeltaLog(hwm)
}

// loadFromLatestSnapshotKey is the recovery path for a sink whose meta/self
// record is missing or was never written (e.g. the process crashed between
// a snapshot write and its meta update): it finds the snapshot key with the
// greatest embedded timestamp directly and loads from there, then replays
// the full delta log exactly as Load does.
func (e *Engine) loadFromLatestSnapshotKey() (clock.Timestamp, error) {
	entries, err := e.sink.Scan(snapshotPrefix)
	if err != nil {
		return clock.Timestamp{}, &StoreError{Op: "scan_snapshot", Err: err}
	}
	hwm := clock.Zero
	var latestKey string
	found := false
	for _, kv := range entries {
		ts, ok := snapshotTsFromKey(kv.Key)
		if !ok {
			continue
		}
		if !found || hwm.Less(ts) {
			hwm = ts
			latestKey = kv.Key
			found = true
		}
	}
	if found {
		snapData, ok, err := e.sink.Get(latestKey)
		if err != nil {
			return clock.Timestamp{}, &StoreError{Op: "get_snapshot", Err: err}
		}
		if ok {
			var d model.Delta
			if err := json.Unmarshal(snapData, &d); err != nil {
				return clock.Timestamp{}, &StoreError{Op: "decode_snapshot", Err: err}
			}
			e.model.ApplyDelta(d)
		}
	}

	return e.replayDeltaLog(hwm)
}

// replayDeltaLog applies every entry in the delta log to the model,
// returning the greater of baseline and every op's embedded timestamp.
func (e *Engine) replayDeltaLog(baseline clock.Timestamp) (clock.Timestamp, error) {
	hwm := baseline
	entries, err := e.sink.Scan(deltaPrefix)
	if err != nil {
		return clock.Timestamp{}, &StoreError{Op: "scan_delta", Err: err}
	}
	for _, kv := range entries {
		var d model.Delta
		if err := json.Unmarshal(kv.Value, &d); err != nil {
			e.logger.Warn().Str("key", kv.Key).Err(err).Msg("skipping corrupt delta log entry")
			continue
		}
		e.model.ApplyDelta(d)
		idx := lastSlash(kv.Key)
		if idx >= 0 {
			if ts, ok := parseTsKey(kv.Key[idx+1:]); ok && hwm.Less(ts) {
				hwm = ts
			}
		}
	}
	e.logger.Info().Str("hwm", hwm.String()).Int("delta_entries", len(entries)).Msg("loaded from store")
	return hwm, nil
}
