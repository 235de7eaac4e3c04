package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/witlox/horao/pkg/clock"
)

func mts(wall int64, peer string) clock.Timestamp {
	return clock.Timestamp{WallMs: wall, Counter: 0, PeerID: peer}
}

func TestUpsertResourceRejectsInvalidKind(t *testing.T) {
	m := New()
	err := m.UpsertResource("r1", ResourceKind("gpu"), CapacityVector{"cpu": 1}, nil, mts(1, "p1"))
	var want *InvalidKindError
	require.ErrorAs(t, err, &want)
}

func TestUpsertResourceRejectsCapacityShape(t *testing.T) {
	m := New()
	err := m.UpsertResource("r1", ResourceKindCompute, CapacityVector{"cpu": 1, "bandwidth": 1}, nil, mts(1, "p1"))
	var want *CapacityShapeError
	require.ErrorAs(t, err, &want)
}

func TestUpsertResourceThenGet(t *testing.T) {
	m := New()
	err := m.UpsertResource("r1", ResourceKindCompute, CapacityVector{"cpu": 8, "memory": 32}, map[string]string{"zone": "a"}, mts(1, "p1"))
	require.NoError(t, err)

	r, ok := m.GetResource("r1")
	require.True(t, ok)
	assert.Equal(t, ResourceKindCompute, r.Kind)
	assert.Equal(t, CapacityVector{"cpu": 8, "memory": 32}, r.Capacity)
	assert.Equal(t, "a", r.Attributes["zone"])
}

func TestSetResourceStateFailsUnknown(t *testing.T) {
	m := New()
	err := m.SetResourceState("missing", ResourceStateDraining, mts(1, "p1"))
	var want *UnknownResourceError
	require.ErrorAs(t, err, &want)
}

func TestSetResourceStateTransitions(t *testing.T) {
	m := New()
	require.NoError(t, m.UpsertResource("r1", ResourceKindStorage, CapacityVector{"iops": 100, "bytes": 1e9}, nil, mts(1, "p1")))
	require.NoError(t, m.SetResourceState("r1", ResourceStateDraining, mts(2, "p1")))

	r, ok := m.GetResource("r1")
	require.True(t, ok)
	assert.Equal(t, ResourceStateDraining, r.State)
}

func TestModelMergeResourcesConverge(t *testing.T) {
	// Two peers each create a distinct resource concurrently (scenario S1
	// style); after merge, both must hold both resources.
	p1 := New()
	require.NoError(t, p1.UpsertResource("r1", ResourceKindCompute, CapacityVector{"cpu": 8, "memory": 32}, nil, mts(100, "p1")))

	p2 := New()
	require.NoError(t, p2.UpsertResource("r2", ResourceKindCompute, CapacityVector{"cpu": 8, "memory": 32}, nil, mts(101, "p2")))

	p1.Merge(p2)
	p2.Merge(p1)

	for _, m := range []*Model{p1, p2} {
		_, ok1 := m.GetResource("r1")
		_, ok2 := m.GetResource("r2")
		assert.True(t, ok1)
		assert.True(t, ok2)
	}
}
