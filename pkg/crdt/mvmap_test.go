package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMVMapSingleWriteRoundTrips(t *testing.T) {
	m := NewMVMap[string, string]()
	m.Set("slot-1", "res-a", ts(100, 0, "p1"))
	assert.Equal(t, []string{"res-a"}, m.Get("slot-1"))
}

func TestMVMapConcurrentWritesAccumulateAsSiblings(t *testing.T) {
	// p1 and p2 each assign a different resource to the same slot without
	// observing the other's write: both siblings survive a merge.
	p1 := NewMVMap[string, string]()
	p1.Set("slot-1", "res-a", ts(100, 0, "p1"))

	p2 := NewMVMap[string, string]()
	p2.Set("slot-1", "res-b", ts(100, 0, "p2"))

	p1.Merge(p2)
	got := p1.Get("slot-1")
	assert.ElementsMatch(t, []string{"res-a", "res-b"}, got)
}

func TestMVMapLaterWriteSubsumesSiblings(t *testing.T) {
	p1 := NewMVMap[string, string]()
	p1.Set("slot-1", "res-a", ts(100, 0, "p1"))

	p2 := NewMVMap[string, string]()
	p2.Set("slot-1", "res-b", ts(100, 0, "p2"))

	p1.Merge(p2)
	p1.Set("slot-1", "res-c", ts(200, 0, "p1"))
	assert.Equal(t, []string{"res-c"}, p1.Get("slot-1"))
}

func TestMVMapRemoveThenResurrect(t *testing.T) {
	m := NewMVMap[string, string]()
	m.Set("slot-1", "res-a", ts(100, 0, "p1"))
	m.Remove("slot-1", ts(200, 0, "p1"))
	assert.Empty(t, m.Get("slot-1"))

	m.Set("slot-1", "res-b", ts(300, 0, "p1"))
	assert.Equal(t, []string{"res-b"}, m.Get("slot-1"))
}

func TestMVMapMergeIdempotent(t *testing.T) {
	m := NewMVMap[string, string]()
	m.Set("slot-1", "res-a", ts(100, 0, "p1"))

	dst := NewMVMap[string, string]()
	dst.Merge(m)
	dst.Merge(m)
	assert.Equal(t, []string{"res-a"}, dst.Get("slot-1"))
}

func TestMVMapDelta(t *testing.T) {
	m := NewMVMap[string, string]()
	m.Set("slot-1", "res-a", ts(100, 0, "p1"))
	m.Remove("slot-2", ts(200, 0, "p1"))

	ops := m.Delta(ts(50, 0, "p1"))
	assert.Len(t, ops, 2)
}
