/*
Package store persists a model.Model's merged CRDT state through an
abstract key-value Sink.

# Core Components

Sink: the narrow contract (Put/Get/Scan/Close) the engine is written
against — BoltSink is the only implementation, but nothing here depends
on bbolt directly outside boltsink.go.

Engine: owns the snapshot cadence (by operation count, by wall-clock
interval, or both) and the load-time sequence of "read the latest
snapshot, replay every delta logged since, start serving". Every key it
writes follows the layout:

	snapshot/<schema_ver>/<ts> -> full model.Delta dump
	delta/<origin_peer>/<ts>   -> one recorded model.Delta batch
	meta/self                  -> {peer_id, schema_ver, last_snapshot_ts}

# Usage

	sink, err := store.NewBoltSink(dataDir)
	engine := store.NewEngine(sink, m, peerID, 1000, 5*time.Minute)
	hwm, err := engine.Load()
	engine.Start()
	defer engine.Stop()

	// after applying a local write or merging a remote delta:
	engine.RecordDelta(originPeerID, ts, m.Delta(since))

# Design Patterns

Snapshots are self-describing (schema version, clock high-water mark) so
a peer can detect and refuse to load a snapshot written by an
incompatible build rather than silently misinterpreting it. Every CRDT
Apply replayed from the delta log is independently idempotent, so Load
never needs the log in a particular order — same-origin monotonicity,
guaranteed by the sync engine, only matters for delta-log pruning, which
this package does not yet perform.
*/
package store
