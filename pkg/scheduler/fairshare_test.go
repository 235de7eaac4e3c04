package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/witlox/horao/pkg/model"
)

func TestPoolCapacity(t *testing.T) {
	tests := []struct {
		name      string
		resources []model.Resource
		expected  map[model.ResourceKind]int
	}{
		{
			name: "mixed kinds, offline excluded",
			resources: []model.Resource{
				{ID: "r1", Kind: model.ResourceKindCompute, State: model.ResourceStateActive},
				{ID: "r2", Kind: model.ResourceKindCompute, State: model.ResourceStateDraining},
				{ID: "r3", Kind: model.ResourceKindCompute, State: model.ResourceStateOffline},
				{ID: "r4", Kind: model.ResourceKindNetwork, State: model.ResourceStateActive},
			},
			expected: map[model.ResourceKind]int{
				model.ResourceKindCompute: 2,
				model.ResourceKindNetwork: 1,
			},
		},
		{
			name:      "empty",
			resources: nil,
			expected:  map[model.ResourceKind]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, poolCapacity(tt.resources))
		})
	}
}

func TestShareFor(t *testing.T) {
	tests := []struct {
		name     string
		shares   map[string]int
		tenant   string
		expected int
	}{
		{name: "configured weight", shares: map[string]int{"gold": 4}, tenant: "gold", expected: 4},
		{name: "absent tenant defaults to one", shares: map[string]int{"gold": 4}, tenant: "bronze", expected: 1},
		{name: "nil shares defaults to one", shares: nil, tenant: "anyone", expected: 1},
		{name: "non-positive weight defaults to one", shares: map[string]int{"x": 0}, tenant: "x", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shareFor(tt.shares, tt.tenant))
		})
	}
}

func TestDominantShare(t *testing.T) {
	tests := []struct {
		name     string
		demand   map[model.ResourceKind]int
		pool     map[model.ResourceKind]int
		expected float64
	}{
		{
			name:     "single dimension",
			demand:   map[model.ResourceKind]int{model.ResourceKindCompute: 2},
			pool:     map[model.ResourceKind]int{model.ResourceKindCompute: 4},
			expected: 0.5,
		},
		{
			name: "dominant dimension picked",
			demand: map[model.ResourceKind]int{
				model.ResourceKindCompute: 1,
				model.ResourceKindStorage: 9,
			},
			pool: map[model.ResourceKind]int{
				model.ResourceKindCompute: 4,
				model.ResourceKindStorage: 10,
			},
			expected: 0.9,
		},
		{
			name:     "kind absent from pool skipped",
			demand:   map[model.ResourceKind]int{model.ResourceKindNetwork: 5},
			pool:     map[model.ResourceKind]int{model.ResourceKindCompute: 4},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, dominantShare(tt.demand, tt.pool), 1e-9)
		})
	}
}

func TestRankPendingOrdersByWeightedShareThenPriorityThenStart(t *testing.T) {
	pool := map[model.ResourceKind]int{model.ResourceKindCompute: 10}
	held := map[string]map[model.ResourceKind]int{}
	profiles := map[string]model.ResourceProfile{
		"p1": {ID: "p1", Kind: model.ResourceKindCompute, Quantity: 2},
		"p2": {ID: "p2", Kind: model.ResourceKindCompute, Quantity: 2},
		"p3": {ID: "p3", Kind: model.ResourceKindCompute, Quantity: 8},
	}
	getProfile := func(id string) (model.ResourceProfile, bool) {
		p, ok := profiles[id]
		return p, ok
	}

	pending := []model.Claim{
		{ID: "c-bronze", Tenant: "bronze", ProfileIDs: []string{"p1"}, Window: model.Window{StartMs: 100}},
		{ID: "c-gold", Tenant: "gold", ProfileIDs: []string{"p2"}, Window: model.Window{StartMs: 200}},
		{ID: "c-heavy", Tenant: "bronze", ProfileIDs: []string{"p3"}, Window: model.Window{StartMs: 50}},
	}
	shares := map[string]int{"gold": 4, "bronze": 1}

	ranked := rankPending(pending, held, pool, getProfile, shares)
	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.claim.ID
	}

	// gold's 2-unit ask weighted by share 4 (0.2/4=0.05) ranks ahead of
	// bronze's 2-unit ask at weight 1 (0.2/1=0.2), which in turn ranks
	// ahead of bronze's 8-unit ask (0.8/1=0.8).
	assert.Equal(t, []string{"c-gold", "c-bronze", "c-heavy"}, ids)
}

func TestRankPendingMaintenanceIgnoresShareWeight(t *testing.T) {
	pool := map[model.ResourceKind]int{model.ResourceKindCompute: 10}
	held := map[string]map[model.ResourceKind]int{}
	profiles := map[string]model.ResourceProfile{
		"pm": {ID: "pm", Kind: model.ResourceKindCompute, Quantity: 1},
	}
	getProfile := func(id string) (model.ResourceProfile, bool) {
		p, ok := profiles[id]
		return p, ok
	}

	pending := []model.Claim{
		{ID: "maint-1", Tenant: "ops", Kind: model.ClaimKindMaintenance, ProfileIDs: []string{"pm"}},
	}
	// An absurdly high share for "ops" must not change a maintenance
	// claim's ranking, since maintenance doesn't consume tenant share.
	shares := map[string]int{"ops": 1000}

	ranked := rankPending(pending, held, pool, getProfile, shares)
	assert.InDelta(t, 0.1, ranked[0].shareIfAdmitted, 1e-9)
}
