package crdt

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// MVMapOp is a single Multi-Value Map mutation: a sibling write or a
// key-wide removal.
type MVMapOp[K comparable, V any] struct {
	Key     K
	Value   V
	Removed bool
	Ts      clock.Timestamp
}

type sibling[V any] struct {
	value V
	ts    clock.Timestamp
}

// MVMap is a Multi-Value Map: a map whose values are sets of (value,
// timestamp) siblings. Concurrent writes to the same key surface as
// multiple siblings until a later write subsumes them — a write with a
// timestamp greater than or equal to every current sibling's timestamp
// subsumes them all. Horao uses this for logical infrastructure membership
// (logical-slot-name -> resource-id), where two peers may concurrently
// assign different resources to the same slot and both must be visible
// until reconciled.
type MVMap[K comparable, V any] struct {
	mu         sync.RWMutex
	siblings   map[K][]sibling[V]
	tombstones map[K]clock.Timestamp
}

// NewMVMap returns an empty Multi-Value Map.
func NewMVMap[K comparable, V any]() *MVMap[K, V] {
	return &MVMap[K, V]{
		siblings:   make(map[K][]sibling[V]),
		tombstones: make(map[K]clock.Timestamp),
	}
}

// Set writes value for key at ts. If ts is greater than or equal to every
// current sibling's timestamp, it subsumes them (becomes the sole value);
// otherwise it is added as an additional, concurrent sibling.
func (m *MVMap[K, V]) Set(key K, value V, ts clock.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.siblings[key]
	dominates := true
	for _, s := range cur {
		if s.ts.After(ts) {
			dominates = false
			break
		}
	}
	if dominates {
		m.siblings[key] = []sibling[V]{{value: value, ts: ts}}
		return
	}
	m.siblings[key] = append(cur, sibling[V]{value: value, ts: ts})
}

// Remove tombstones key at ts. A Set with a later timestamp than the
// tombstone resurrects the key, consistent with OR-Set's re-add semantics.
func (m *MVMap[K, V]) Remove(key K, ts clock.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.tombstones[key]; !ok || ts.After(prev) {
		m.tombstones[key] = ts
	}
}

// Get returns every surviving sibling value for key, in no particular
// order (callers needing a deterministic order should sort by their own
// criteria; siblings are inherently concurrent and have no natural order).
func (m *MVMap[K, V]) Get(key K) []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.surviving(key)
}

func (m *MVMap[K, V]) surviving(key K) []V {
	tomb, hasTomb := m.tombstones[key]
	var out []V
	for _, s := range m.siblings[key] {
		if hasTomb && !s.ts.After(tomb) {
			continue
		}
		out = append(out, s.value)
	}
	return out
}

// Value materializes every key with at least one surviving sibling.
func (m *MVMap[K, V]) Value() map[K][]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[K][]V, len(m.siblings))
	for k := range m.siblings {
		if vs := m.surviving(k); len(vs) > 0 {
			out[k] = vs
		}
	}
	return out
}

// Merge unions another Multi-Value Map's siblings and tombstones into this
// one. Subsumption is not recomputed here: each surviving sibling already
// represents a write that, at the time it was made, did not observe every
// other surviving sibling, so all of them remain visible until some
// future Set legitimately dominates them.
func (m *MVMap[K, V]) Merge(other *MVMap[K, V]) {
	other.mu.RLock()
	remoteSiblings := make(map[K][]sibling[V], len(other.siblings))
	for k, ss := range other.siblings {
		remoteSiblings[k] = append([]sibling[V]{}, ss...)
	}
	remoteTombs := make(map[K]clock.Timestamp, len(other.tombstones))
	for k, t := range other.tombstones {
		remoteTombs[k] = t
	}
	other.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range remoteTombs {
		if prev, ok := m.tombstones[k]; !ok || t.After(prev) {
			m.tombstones[k] = t
		}
	}
	for k, ss := range remoteSiblings {
		m.siblings[k] = dedupe(append(m.siblings[k], ss...))
	}
}

// dedupe drops siblings whose timestamp was already seen (a timestamp
// identifies one write), duplicates that can arise when the same sibling
// reaches a peer through more than one merge path. It does not
// re-derive subsumption: that decision is made once, locally, by Set
// against the siblings its caller actually observed. Re-running a
// blanket "keep only the newest timestamp" pass here would silently
// discard siblings that were genuinely concurrent (neither write observed
// the other), which is exactly the case this type exists to preserve.
func dedupe[V any](all []sibling[V]) []sibling[V] {
	seen := make(map[clock.Timestamp]bool, len(all))
	out := make([]sibling[V], 0, len(all))
	for _, s := range all {
		if seen[s.ts] {
			continue
		}
		seen[s.ts] = true
		out = append(out, s)
	}
	return out
}

// Delta returns every sibling-write or removal op whose timestamp exceeds
// since.
func (m *MVMap[K, V]) Delta(since clock.Timestamp) []MVMapOp[K, V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ops []MVMapOp[K, V]
	for k, ss := range m.siblings {
		for _, s := range ss {
			if since.Less(s.ts) {
				ops = append(ops, MVMapOp[K, V]{Key: k, Value: s.value, Ts: s.ts})
			}
		}
	}
	for k, t := range m.tombstones {
		if since.Less(t) {
			ops = append(ops, MVMapOp[K, V]{Key: k, Removed: true, Ts: t})
		}
	}
	return ops
}

// Apply replays a single remote op.
func (m *MVMap[K, V]) Apply(op MVMapOp[K, V]) {
	if op.Removed {
		m.Remove(op.Key, op.Ts)
		return
	}
	m.Set(op.Key, op.Value, op.Ts)
}
