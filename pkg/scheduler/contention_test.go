package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/witlox/horao/pkg/model"
)

func TestWaterFillSplitsScarcityProportionally(t *testing.T) {
	// pool=16, weight 1:3 asking 8 and 16. Neither demand fits under its
	// proportional share, so nobody gets capped and the raw 1:3 split
	// lands exactly on 4/12.
	alloc := waterFill(16, []int{8, 16}, []int{1, 3})
	assert.Equal(t, []int{4, 12}, alloc)
}

func TestWaterFillSatisfiesEveryoneWhenCapacityExceedsDemand(t *testing.T) {
	alloc := waterFill(30, []int{8, 16}, []int{1, 3})
	assert.Equal(t, []int{8, 16}, alloc)
}

func TestWaterFillCapsLightDemandAndGivesSurplusToTheRest(t *testing.T) {
	// A only wants 2; even at low weight it gets them in full, and the
	// capacity that frees up goes to B and C by their own weights.
	alloc := waterFill(10, []int{2, 100, 100}, []int{1, 1, 1})
	assert.Equal(t, 2, alloc[0])
	assert.Equal(t, 8, alloc[1]+alloc[2])
	assert.InDelta(t, alloc[1], alloc[2], 1)
}

func TestWaterFillZeroDemandGetsNothing(t *testing.T) {
	alloc := waterFill(10, []int{0, 5}, []int{1, 1})
	assert.Equal(t, []int{0, 5}, alloc)
}

func TestWaterFillZeroCapacity(t *testing.T) {
	alloc := waterFill(0, []int{5, 5}, []int{1, 1})
	assert.Equal(t, []int{0, 0}, alloc)
}

func TestAttrsSignatureStableAcrossMapOrder(t *testing.T) {
	a := attrsSignature(map[string]string{"rack": "r1", "az": "a"})
	b := attrsSignature(map[string]string{"az": "a", "rack": "r1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "", attrsSignature(nil))
}

func TestGroupByContentionPreservesFirstSeenOrder(t *testing.T) {
	w := model.Window{StartMs: 0, EndMs: 100}
	demands := []profileDemand{
		{claimID: "c1", kind: model.ResourceKindCompute, window: w},
		{claimID: "c2", kind: model.ResourceKindNetwork, window: w},
		{claimID: "c3", kind: model.ResourceKindCompute, window: w},
	}
	groups := groupByContention(demands)
	if assert.Len(t, groups, 2) {
		assert.Len(t, groups[0], 2)
		assert.Equal(t, "c1", groups[0][0].claimID)
		assert.Equal(t, "c3", groups[0][1].claimID)
		assert.Len(t, groups[1], 1)
		assert.Equal(t, "c2", groups[1][0].claimID)
	}
}
