package crdt

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// ObservationLedger tracks, per (observer, origin) pair, the newest
// timestamp the observer has acknowledged having seen from the origin.
// pkg/gossip feeds it from every HELLO's last_seen_ts_per_peer map.
//
// The ledger answers the causal-safety question a tombstone GC pass
// would have to ask: a tombstone written by origin at ts may only be
// discarded once every peer that must observe it has acknowledged a
// timestamp at or beyond ts. No GC pass exists today; the ledger keeps
// the precondition answerable without changing the tombstone
// representation if one is added.
type ObservationLedger struct {
	mu    sync.RWMutex
	acked map[string]map[string]clock.Timestamp // observer -> origin -> high-water
}

// NewObservationLedger returns an empty ledger.
func NewObservationLedger() *ObservationLedger {
	return &ObservationLedger{acked: make(map[string]map[string]clock.Timestamp)}
}

// Ack records that observer has seen everything origin produced up to
// ts. Older acknowledgements never regress the recorded high-water mark.
func (l *ObservationLedger) Ack(observer, origin string, ts clock.Timestamp) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byOrigin, ok := l.acked[observer]
	if !ok {
		byOrigin = make(map[string]clock.Timestamp)
		l.acked[observer] = byOrigin
	}
	if cur, ok := byOrigin[origin]; !ok || cur.Less(ts) {
		byOrigin[origin] = ts
	}
}

// Acked returns the newest timestamp observer has acknowledged from
// origin, if any.
func (l *ObservationLedger) Acked(observer, origin string) (clock.Timestamp, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ts, ok := l.acked[observer][origin]
	return ts, ok
}

// FullyObserved reports whether every observer in observers has
// acknowledged a timestamp >= ts from origin. An empty observer list is
// vacuously true; an observer with no acknowledgement at all is not.
func (l *ObservationLedger) FullyObserved(origin string, ts clock.Timestamp, observers []string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, obs := range observers {
		seen, ok := l.acked[obs][origin]
		if !ok || seen.Less(ts) {
			return false
		}
	}
	return true
}
