package crdt

import (
	"sort"
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// ORSetOp is a single OR-Set mutation: an addition of (value, tag) at a
// timestamp, or the removal of a specific previously-observed tag.
type ORSetOp[T comparable] struct {
	Value   T
	Tag     string
	Removed bool
	Ts      clock.Timestamp
}

type tagEntry struct {
	ts      clock.Timestamp
	removed bool
}

// ORSet is an Observed-Removed Set: elements are stored as {value,
// unique-tag, addition-timestamp} triples. Removal emits a tombstone for
// each tag the remover observed, so a concurrent add (a new tag the
// remover never saw) survives a remove issued before that add was
// observed.
type ORSet[T comparable] struct {
	mu   sync.RWMutex
	tags map[T]map[string]*tagEntry
}

// NewORSet returns an empty OR-Set.
func NewORSet[T comparable]() *ORSet[T] {
	return &ORSet[T]{tags: make(map[T]map[string]*tagEntry)}
}

// Add adds value under a caller-supplied unique tag (typically a UUID) at
// ts. The tag lets concurrent adds of the same value remain distinguishable
// so a remove that only observed one tag doesn't erase the other.
func (s *ORSet[T]) Add(value T, tag string, ts clock.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tags[value]
	if !ok {
		m = make(map[string]*tagEntry)
		s.tags[value] = m
	}
	if e, exists := m[tag]; exists {
		if ts.After(e.ts) {
			e.ts = ts
		}
		return
	}
	m[tag] = &tagEntry{ts: ts}
}

// Remove tombstones every tag currently observed for value. Any tag added
// concurrently elsewhere (not yet observed here) is untouched and will
// resurrect the element once merged in.
func (s *ORSet[T]) Remove(value T, ts clock.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tags[value]
	if !ok {
		return
	}
	for _, e := range m {
		if !e.removed {
			e.removed = true
			e.ts = ts
		}
	}
}

// Contains reports whether value has at least one non-removed tag.
func (s *ORSet[T]) Contains(value T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.tags[value] {
		if !e.removed {
			return true
		}
	}
	return false
}

// Values returns every element with at least one surviving tag. Order is
// not semantically meaningful for an OR-Set — convergence is about set
// membership, not iteration order — but callers can supply less for a
// deterministic result.
func (s *ORSet[T]) Values(less func(a, b T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []T
	for v, m := range s.tags {
		for _, e := range m {
			if !e.removed {
				out = append(out, v)
				break
			}
		}
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

// Merge unions another OR-Set's tags into this one, per tag taking the
// union of removed flags/newer timestamp. This is the CRDT contract: union
// of adds, union of observed removals, independent of delivery order.
func (s *ORSet[T]) Merge(other *ORSet[T]) {
	other.mu.RLock()
	snapshot := make(map[T]map[string]tagEntry, len(other.tags))
	for v, m := range other.tags {
		cp := make(map[string]tagEntry, len(m))
		for tag, e := range m {
			cp[tag] = *e
		}
		snapshot[v] = cp
	}
	other.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for v, m := range snapshot {
		dst, ok := s.tags[v]
		if !ok {
			dst = make(map[string]*tagEntry)
			s.tags[v] = dst
		}
		for tag, remote := range m {
			local, ok := dst[tag]
			if !ok {
				cp := remote
				dst[tag] = &cp
				continue
			}
			if remote.removed && !local.removed {
				local.removed = true
				local.ts = remote.ts
			}
			if remote.ts.After(local.ts) {
				local.ts = remote.ts
			}
		}
	}
}

// Delta returns every add/remove op whose timestamp exceeds since.
func (s *ORSet[T]) Delta(since clock.Timestamp) []ORSetOp[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ops []ORSetOp[T]
	for v, m := range s.tags {
		for tag, e := range m {
			if since.Less(e.ts) {
				ops = append(ops, ORSetOp[T]{Value: v, Tag: tag, Removed: e.removed, Ts: e.ts})
			}
		}
	}
	return ops
}

// Apply replays a single remote op.
func (s *ORSet[T]) Apply(op ORSetOp[T]) {
	if op.Removed {
		s.mu.Lock()
		m, ok := s.tags[op.Value]
		if !ok {
			m = make(map[string]*tagEntry)
			s.tags[op.Value] = m
		}
		if e, exists := m[op.Tag]; exists {
			e.removed = true
			if op.Ts.After(e.ts) {
				e.ts = op.Ts
			}
		} else {
			m[op.Tag] = &tagEntry{ts: op.Ts, removed: true}
		}
		s.mu.Unlock()
		return
	}
	s.Add(op.Value, op.Tag, op.Ts)
}
