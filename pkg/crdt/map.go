package crdt

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// MapOp is a single LWW-Map mutation: a set or a delete of key K, stamped
// with the timestamp that ordered it against concurrent writers.
type MapOp[K comparable, V any] struct {
	Key     K
	Value   V
	Deleted bool
	Ts      clock.Timestamp
}

type mapEntry[V any] struct {
	value *Register[V]
	tomb  *Register[bool]
}

// Map is a Last-Writer-Wins Map: a mapping from K to LWW-Register(V), plus
// a tombstone LWW-Register per removed key. A key is present in the
// materialized view iff its value register is set and either it has no
// tombstone or the value's timestamp is newer than the tombstone's — i.e.
// the most recent write, set or delete, wins.
type Map[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*mapEntry[V]
}

// NewMap returns an empty LWW-Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{entries: make(map[K]*mapEntry[V])}
}

func (m *Map[K, V]) entry(k K) *mapEntry[V] {
	e, ok := m.entries[k]
	if !ok {
		e = &mapEntry[V]{value: NewRegister[V](), tomb: NewRegister[bool]()}
		m.entries[k] = e
	}
	return e
}

// Set writes value for key at ts.
func (m *Map[K, V]) Set(key K, value V, ts clock.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(key).value.Apply(RegisterOp[V]{Value: value, Ts: ts})
}

// Delete tombstones key at ts. The tombstone itself is never dropped by
// this package; callers that need garbage collection must honor whatever
// causal-safety barrier their deployment requires before discarding it.
func (m *Map[K, V]) Delete(key K, ts clock.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(key).tomb.Apply(RegisterOp[bool]{Value: true, Ts: ts})
}

// Get returns the materialized value for key and whether it is present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return zero[V](), false
	}
	return present(e)
}

func present[V any](e *mapEntry[V]) (V, bool) {
	val, vts, vset := e.value.Value()
	if !vset {
		return zero[V](), false
	}
	_, tts, tset := e.tomb.Value()
	if tset && !vts.After(tts) {
		return zero[V](), false
	}
	return val, true
}

func zero[V any]() V {
	var z V
	return z
}

// Value materializes every present key into a plain map.
func (m *Map[K, V]) Value() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[K]V, len(m.entries))
	for k, e := range m.entries {
		if v, ok := present(e); ok {
			out[k] = v
		}
	}
	return out
}

// Merge folds a remote map's state into this one key by key. Commutative,
// associative, and idempotent, since each key's merge reduces to two
// independent Register merges.
func (m *Map[K, V]) Merge(other *Map[K, V]) {
	other.mu.RLock()
	remoteKeys := make([]K, 0, len(other.entries))
	remoteEntries := make(map[K]*mapEntry[V], len(other.entries))
	for k, e := range other.entries {
		remoteKeys = append(remoteKeys, k)
		remoteEntries[k] = e
	}
	other.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range remoteKeys {
		re := remoteEntries[k]
		le := m.entry(k)
		le.value.Merge(re.value)
		le.tomb.Merge(re.tomb)
	}
}

// Delta returns every op (set or delete) whose timestamp exceeds since.
func (m *Map[K, V]) Delta(since clock.Timestamp) []MapOp[K, V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ops []MapOp[K, V]
	for k, e := range m.entries {
		if op, ok := e.value.Delta(since); ok {
			ops = append(ops, MapOp[K, V]{Key: k, Value: op.Value, Ts: op.Ts})
		}
		if op, ok := e.tomb.Delta(since); ok && op.Value {
			ops = append(ops, MapOp[K, V]{Key: k, Deleted: true, Ts: op.Ts})
		}
	}
	return ops
}

// Apply replays a single remote op against this map.
func (m *Map[K, V]) Apply(op MapOp[K, V]) {
	if op.Deleted {
		m.Delete(op.Key, op.Ts)
		return
	}
	m.Set(op.Key, op.Value, op.Ts)
}
