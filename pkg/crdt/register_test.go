package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/witlox/horao/pkg/clock"
)

func ts(wall int64, counter uint64, peer string) clock.Timestamp {
	return clock.Timestamp{WallMs: wall, Counter: counter, PeerID: peer}
}

func TestRegisterLWWKeepsLatest(t *testing.T) {
	r := NewRegister[string]()
	r.Apply(RegisterOp[string]{Value: "a", Ts: ts(100, 0, "p1")})
	r.Apply(RegisterOp[string]{Value: "b", Ts: ts(101, 0, "p2")})

	v, _, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestRegisterTieBreaksOnPeerID(t *testing.T) {
	r := NewRegister[string]()
	r.Apply(RegisterOp[string]{Value: "from-beta", Ts: ts(100, 0, "beta")})
	r.Apply(RegisterOp[string]{Value: "from-alpha", Ts: ts(100, 0, "alpha")})

	v, _, _ := r.Value()
	// beta > alpha lexicographically, so beta's write should stick even
	// though it was applied first (older call order, not older timestamp).
	assert.Equal(t, "from-beta", v)
}

func TestRegisterMergeIdempotent(t *testing.T) {
	a := NewRegister[int]()
	a.Apply(RegisterOp[int]{Value: 5, Ts: ts(10, 0, "p1")})
	b := NewRegister[int]()
	b.Merge(a)
	b.Merge(a)
	v, _, _ := b.Value()
	assert.Equal(t, 5, v)
}

func TestRegisterMergeCommutative(t *testing.T) {
	a1 := NewRegister[int]()
	a1.Apply(RegisterOp[int]{Value: 1, Ts: ts(10, 0, "p1")})
	b1 := NewRegister[int]()
	b1.Apply(RegisterOp[int]{Value: 2, Ts: ts(11, 0, "p2")})

	left := NewRegister[int]()
	left.Merge(a1)
	left.Merge(b1)

	right := NewRegister[int]()
	right.Merge(b1)
	right.Merge(a1)

	lv, _, _ := left.Value()
	rv, _, _ := right.Value()
	assert.Equal(t, lv, rv)
	assert.Equal(t, 2, lv)
}

func TestRegisterDelta(t *testing.T) {
	r := NewRegister[int]()
	r.Apply(RegisterOp[int]{Value: 1, Ts: ts(10, 0, "p1")})
	r.Apply(RegisterOp[int]{Value: 2, Ts: ts(20, 0, "p1")})

	op, ok := r.Delta(ts(15, 0, "p1"))
	assert.True(t, ok)
	assert.Equal(t, 2, op.Value)

	_, ok = r.Delta(ts(25, 0, "p1"))
	assert.False(t, ok)
}
