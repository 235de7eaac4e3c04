package crdt

import (
	"math/big"
	"sort"
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// Position is a dense rational position in a Fractional-Index Array.
// Positions are never reduced away from the caller's control beyond what
// big.Rat itself normalizes, and the package never bounds their depth: a
// pathological insertion pattern can grow numerator/denominator without
// limit, trading unbounded precision for unbounded size.
type Position = big.Rat

// LeftSentinel and RightSentinel bound every Fractional-Index Array, mirroring
// the classic Stern-Brocot tree's root bounds 0/1 and 1/1. A first insertion
// into an empty array lands on their mediant, 1/2.
var (
	LeftSentinel  = big.NewRat(0, 1)
	RightSentinel = big.NewRat(1, 1)
)

// Mediant computes the Stern-Brocot mediant (a.Num+b.Num)/(a.Denom+b.Denom)
// of two positions. For any a < b with positive denominators, a <
// mediant(a,b) < b holds regardless of whether a and b are already in
// lowest terms.
func Mediant(a, b *Position) *Position {
	num := new(big.Int).Add(a.Num(), b.Num())
	den := new(big.Int).Add(a.Denom(), b.Denom())
	return new(big.Rat).SetFrac(num, den)
}

// nudgeRight returns a position strictly greater than left, used as a
// synthetic right bound when left and the natural right neighbor have
// collapsed onto the same rational value (two peers independently landing
// on the same mediant between the same pair of neighbors). Doubling the
// denominator and incrementing the numerator keeps it strictly between
// left and left+1, so Mediant(left, nudgeRight(left)) always makes
// progress instead of looping forever.
func nudgeRight(left *Position) *Position {
	num := new(big.Int).Add(new(big.Int).Mul(left.Num(), big.NewInt(2)), big.NewInt(1))
	den := new(big.Int).Mul(left.Denom(), big.NewInt(2))
	return new(big.Rat).SetFrac(num, den)
}

// FArrayOp is a single Fractional-Index Array mutation.
type FArrayOp[T any] struct {
	ID      string
	Pos     *Position
	Value   T
	Deleted bool
	Ts      clock.Timestamp
}

type farrayItem[T any] struct {
	id      string
	pos     *Position
	value   T
	ts      clock.Timestamp
	deleted bool
}

// FArray is a Fractional-Index Array: a totally ordered sequence where
// every element carries a dense rational position, so inserting between
// any two neighbors never requires reindexing the rest of the sequence.
// Deletion leaves a tombstone keyed by the element's stable ID, never its
// position (positions are not reused).
type FArray[T any] struct {
	mu    sync.RWMutex
	items map[string]*farrayItem[T]
}

// NewFArray returns an empty Fractional-Index Array.
func NewFArray[T any]() *FArray[T] {
	return &FArray[T]{items: make(map[string]*farrayItem[T])}
}

// sortedLocked returns live and tombstoned items ordered by position, caller
// must hold at least a read lock.
func (a *FArray[T]) sortedLocked() []*farrayItem[T] {
	out := make([]*farrayItem[T], 0, len(a.items))
	for _, it := range a.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].pos.Cmp(out[j].pos); c != 0 {
			return c < 0
		}
		// Positions can coincide when two peers independently compute the
		// same mediant between the same neighbors. Break the tie on the
		// insert timestamp (which itself tie-breaks on peer id), so every
		// peer converges on the same relative order regardless of merge
		// direction.
		return out[i].ts.Less(out[j].ts)
	})
	return out
}

// neighbors returns the positions immediately surrounding afterID, using
// the sentinels when afterID is empty (insert at head) or has no
// successor (insert at tail).
func (a *FArray[T]) neighbors(afterID string) (left, right *Position) {
	items := a.sortedLocked()
	left, right = LeftSentinel, RightSentinel
	if afterID == "" {
		if len(items) > 0 {
			right = items[0].pos
		}
		return left, right
	}
	for i, it := range items {
		if it.id == afterID {
			left = it.pos
			if i+1 < len(items) {
				right = items[i+1].pos
			}
			return left, right
		}
	}
	return left, right
}

// positionTaken reports whether pos is already occupied by a live element.
func (a *FArray[T]) positionTaken(pos *Position) bool {
	for _, it := range a.items {
		if !it.deleted && it.pos.Cmp(pos) == 0 {
			return true
		}
	}
	return false
}

// Insert inserts value after the element identified by afterID (empty
// string means "at the head"), at a position computed from an optional
// requested hint: if the hint is taken, it re-derives via the mediant to
// the right until a free position is found.
func (a *FArray[T]) Insert(id, afterID string, value T, hint *Position, ts clock.Timestamp) *Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	left, right := a.neighbors(afterID)
	if left.Cmp(right) >= 0 {
		right = nudgeRight(left)
	}
	pos := hint
	if pos == nil {
		pos = Mediant(left, right)
	}
	for a.positionTaken(pos) {
		if pos.Cmp(right) >= 0 {
			right = nudgeRight(pos)
		}
		pos = Mediant(pos, right)
	}

	a.items[id] = &farrayItem[T]{id: id, pos: pos, value: value, ts: ts}
	return pos
}

// Delete tombstones the element with the given ID.
func (a *FArray[T]) Delete(id string, ts clock.Timestamp) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if it, ok := a.items[id]; ok {
		if ts.After(it.ts) {
			it.deleted = true
			it.ts = ts
		}
		return
	}
	// Tombstone-before-seen: record a deleted placeholder so a later,
	// older Insert op for the same ID doesn't resurrect it.
	a.items[id] = &farrayItem[T]{id: id, pos: RightSentinel, deleted: true, ts: ts}
}

// Value returns the live elements in position order.
func (a *FArray[T]) Value() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	items := a.sortedLocked()
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !it.deleted {
			out = append(out, it.value)
		}
	}
	return out
}

// Merge folds a remote array's state into this one by element ID. A
// conflicting write to the same ID resolves by timestamp (LWW). Concurrent
// inserts at overlapping positions are resolved purely by position order,
// which is already deterministic once merged.
func (a *FArray[T]) Merge(other *FArray[T]) {
	other.mu.RLock()
	remote := make([]*farrayItem[T], 0, len(other.items))
	for _, it := range other.items {
		cp := *it
		remote = append(remote, &cp)
	}
	other.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range remote {
		local, ok := a.items[r.id]
		if !ok || r.ts.After(local.ts) {
			a.items[r.id] = r
		}
	}
}

// Delta returns every insert/delete op whose timestamp exceeds since.
func (a *FArray[T]) Delta(since clock.Timestamp) []FArrayOp[T] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var ops []FArrayOp[T]
	for _, it := range a.items {
		if since.Less(it.ts) {
			ops = append(ops, FArrayOp[T]{ID: it.id, Pos: it.pos, Value: it.value, Deleted: it.deleted, Ts: it.ts})
		}
	}
	return ops
}

// Apply replays a single remote op.
func (a *FArray[T]) Apply(op FArrayOp[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	local, ok := a.items[op.ID]
	if ok && !op.Ts.After(local.ts) {
		return
	}
	a.items[op.ID] = &farrayItem[T]{id: op.ID, pos: op.Pos, value: op.Value, deleted: op.Deleted, ts: op.Ts}
}
