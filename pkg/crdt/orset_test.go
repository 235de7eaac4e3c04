package crdt

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestORSetAddRemove(t *testing.T) {
	s := NewORSet[string]()
	s.Add("r1", "tag-1", ts(100, 0, "p1"))
	assert.True(t, s.Contains("r1"))

	s.Remove("r1", ts(200, 0, "p1"))
	assert.False(t, s.Contains("r1"))
}

func TestORSetConcurrentAddRemoveSurvives(t *testing.T) {
	// p1 adds r1 with tag A and observes only tag A when it removes.
	// p2 concurrently adds r1 again with tag B, never observed by p1's
	// remove. After merge, r1 must survive (re-add after remove, §4.2).
	p1 := NewORSet[string]()
	p1.Add("r1", "tag-A", ts(100, 0, "p1"))
	p1.Remove("r1", ts(101, 0, "p1"))

	p2 := NewORSet[string]()
	p2.Add("r1", "tag-B", ts(102, 0, "p2"))

	p1.Merge(p2)
	assert.True(t, p1.Contains("r1"))
}

func TestORSetMergeConvergesUnderAnyOrder(t *testing.T) {
	p1 := NewORSet[string]()
	p1.Add("r1", "tag-1", ts(100, 0, "p1"))
	p2 := NewORSet[string]()
	p2.Add("r2", "tag-2", ts(101, 0, "p2"))

	left := NewORSet[string]()
	left.Merge(p1)
	left.Merge(p2)

	right := NewORSet[string]()
	right.Merge(p2)
	right.Merge(p1)

	lv := left.Values(func(a, b string) bool { return a < b })
	rv := right.Values(func(a, b string) bool { return a < b })
	sort.Strings(lv)
	sort.Strings(rv)
	assert.Equal(t, lv, rv)
	assert.Equal(t, []string{"r1", "r2"}, lv)
}

func TestORSetMergeIdempotent(t *testing.T) {
	p1 := NewORSet[string]()
	p1.Add("r1", "tag-1", ts(100, 0, "p1"))

	dst := NewORSet[string]()
	dst.Merge(p1)
	dst.Merge(p1)
	assert.True(t, dst.Contains("r1"))
	assert.Len(t, dst.Values(nil), 1)
}
