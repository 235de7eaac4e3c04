package crdt

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// RegisterOp is the unit of replication for a Register: a single
// (value, timestamp) write. It is also the shape pkg/gossip serializes onto
// the wire as a DELTA op's value/ts pair.
type RegisterOp[T any] struct {
	Value T
	Ts    clock.Timestamp
}

// Register is a Last-Writer-Wins register. Merge keeps the value with the
// greater timestamp; ties are impossible because clock.Timestamp already
// tie-breaks on peer_id, so "greater" is a strict total order.
type Register[T any] struct {
	mu    sync.RWMutex
	value T
	ts    clock.Timestamp
	set   bool
}

// NewRegister returns an empty (absent) register.
func NewRegister[T any]() *Register[T] {
	return &Register[T]{}
}

// Apply records a local write if ts is newer than the register's current
// timestamp. Returns true if the write took effect.
func (r *Register[T]) Apply(op RegisterOp[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(op)
}

func (r *Register[T]) applyLocked(op RegisterOp[T]) bool {
	if r.set && !r.ts.Less(op.Ts) {
		return false
	}
	r.value = op.Value
	r.ts = op.Ts
	r.set = true
	return true
}

// Merge folds a remote register's state into this one. A pure function
// over (state, state) -> state; idempotent and commutative because it
// reduces to "keep the greater timestamp".
func (r *Register[T]) Merge(other *Register[T]) {
	other.mu.RLock()
	remote := RegisterOp[T]{Value: other.value, Ts: other.ts}
	isSet := other.set
	other.mu.RUnlock()
	if !isSet {
		return
	}
	r.Apply(remote)
}

// Value returns the current materialized value, its timestamp, and whether
// the register has ever been set.
func (r *Register[T]) Value() (T, clock.Timestamp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.ts, r.set
}

// Delta returns the register's op if its timestamp exceeds since. ok is
// false if there's nothing newer.
func (r *Register[T]) Delta(since clock.Timestamp) (op RegisterOp[T], ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.set || !since.Less(r.ts) {
		return op, false
	}
	return RegisterOp[T]{Value: r.value, Ts: r.ts}, true
}
