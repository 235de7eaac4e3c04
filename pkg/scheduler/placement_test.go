package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/witlox/horao/pkg/model"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		resource model.Resource
		kind     model.ResourceKind
		required map[string]string
		expected bool
	}{
		{
			name:     "kind and state match, no required attrs",
			resource: model.Resource{Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
			kind:     model.ResourceKindCompute,
			expected: true,
		},
		{
			name:     "wrong kind",
			resource: model.Resource{Kind: model.ResourceKindNetwork, State: model.ResourceStateActive},
			kind:     model.ResourceKindCompute,
			expected: false,
		},
		{
			name:     "draining excluded",
			resource: model.Resource{Kind: model.ResourceKindCompute, State: model.ResourceStateDraining},
			kind:     model.ResourceKindCompute,
			expected: false,
		},
		{
			name:     "required attribute satisfied",
			resource: model.Resource{Kind: model.ResourceKindCompute, State: model.ResourceStateActive, Attributes: map[string]string{"zone": "a"}},
			kind:     model.ResourceKindCompute,
			required: map[string]string{"zone": "a"},
			expected: true,
		},
		{
			name:     "required attribute mismatched",
			resource: model.Resource{Kind: model.ResourceKindCompute, State: model.ResourceStateActive, Attributes: map[string]string{"zone": "b"}},
			kind:     model.ResourceKindCompute,
			required: map[string]string{"zone": "a"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matches(tt.resource, tt.kind, tt.required))
		})
	}
}

func TestPlaceProfilePrefersLeastLoaded(t *testing.T) {
	resources := []model.Resource{
		{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
		{ID: "r2", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
	}
	window := model.Window{StartMs: 1000, EndMs: 2000}
	occ := occupancy{"r1": []model.Window{{StartMs: 0, EndMs: 500}}}

	chosen, ok := placeProfile(resources, occ, model.ResourceProfile{Kind: model.ResourceKindCompute, Quantity: 1}, window)
	require.True(t, ok)
	assert.Equal(t, []string{"r2"}, chosen)
}

func TestPlaceProfileInsufficientCandidates(t *testing.T) {
	resources := []model.Resource{
		{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
	}
	window := model.Window{StartMs: 1000, EndMs: 2000}

	_, ok := placeProfile(resources, occupancy{}, model.ResourceProfile{Kind: model.ResourceKindCompute, Quantity: 2}, window)
	assert.False(t, ok)
}

func TestPlaceClaimRollsBackOnPartialFailure(t *testing.T) {
	resources := []model.Resource{
		{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
		{ID: "r2", Kind: model.ResourceKindNetwork, State: model.ResourceStateActive},
	}
	window := model.Window{StartMs: 1000, EndMs: 2000}
	profiles := map[string]model.ResourceProfile{
		"p-compute": {ID: "p-compute", Kind: model.ResourceKindCompute, Quantity: 1},
		"p-storage": {ID: "p-storage", Kind: model.ResourceKindStorage, Quantity: 1}, // nothing of this kind exists
	}
	getProfile := func(id string) (model.ResourceProfile, bool) {
		p, ok := profiles[id]
		return p, ok
	}
	claim := model.Claim{ID: "c1", Window: window, ProfileIDs: []string{"p-compute", "p-storage"}}

	occ := occupancy{}
	_, ok := placeClaim(resources, occ, claim, getProfile)
	assert.False(t, ok)
	assert.Empty(t, occ["r1"], "the compute reservation must be rolled back when storage can't be satisfied")
}

func TestAvailabilityOracleImmediatelyAchievable(t *testing.T) {
	resources := []model.Resource{
		{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
		{ID: "r2", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
	}
	window := model.Window{StartMs: 1000, EndMs: 2000}

	max, start := AvailabilityOracle(resources, occupancy{}, model.ResourceKindCompute, nil, window, 2)
	assert.Equal(t, 2, max)
	assert.Equal(t, int64(1000), start)
}

func TestAvailabilityOracleFindsEarliestFutureWindow(t *testing.T) {
	resources := []model.Resource{
		{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
	}
	window := model.Window{StartMs: 1000, EndMs: 2000}
	occ := occupancy{"r1": []model.Window{{StartMs: 1000, EndMs: 1500}}}

	max, start := AvailabilityOracle(resources, occ, model.ResourceKindCompute, nil, window, 1)
	assert.Equal(t, 1, max)
	assert.Equal(t, int64(1500), start)
}

func TestAvailabilityOracleReportsBestEffortWhenUnachievable(t *testing.T) {
	resources := []model.Resource{
		{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
	}
	window := model.Window{StartMs: 1000, EndMs: 2000}
	occ := occupancy{"r1": []model.Window{{StartMs: 1000, EndMs: 1500}}}

	max, _ := AvailabilityOracle(resources, occ, model.ResourceKindCompute, nil, window, 2)
	assert.Equal(t, 1, max)
}
