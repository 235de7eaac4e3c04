package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachToRackFailsUnknownDatacenter(t *testing.T) {
	m := New()
	err := m.AttachToRack("r1", "missing", 0, 0, nil, mts(1, "p1"))
	var want *UnknownDatacenterError
	require.ErrorAs(t, err, &want)
}

func TestAttachToRackAutoVivifiesAndOrders(t *testing.T) {
	m := New()
	m.CreateDatacenter("dc1", "east-1", "us-east", mts(1, "p1"))

	require.NoError(t, m.AttachToRack("r1", "dc1", 0, 0, nil, mts(2, "p1")))
	require.NoError(t, m.AttachToRack("r2", "dc1", 0, 0, nil, mts(3, "p1")))
	require.NoError(t, m.AttachToRack("r3", "dc1", 1, 0, nil, mts(4, "p1")))

	dc, ok := m.GetDatacenter("dc1")
	require.True(t, ok)
	require.Len(t, dc.Rows, 2)
	assert.Equal(t, []string{"r1", "r2"}, dc.Rows[0][0])
	assert.Equal(t, []string{"r3"}, dc.Rows[1][0])
}

func TestModelMergeDatacenterRacksConverge(t *testing.T) {
	// Two peers each attach a different resource to the same datacenter's
	// first row/rack without observing each other; after merge both
	// resources must appear.
	seed := New()
	seed.CreateDatacenter("dc1", "east-1", "us-east", mts(1, "p1"))
	require.NoError(t, seed.AttachToRack("seed", "dc1", 0, 0, nil, mts(2, "p1")))

	p1 := New()
	p1.Merge(seed)
	require.NoError(t, p1.AttachToRack("r1", "dc1", 0, 0, nil, mts(100, "p1")))

	p2 := New()
	p2.Merge(seed)
	require.NoError(t, p2.AttachToRack("r2", "dc1", 0, 0, nil, mts(101, "p2")))

	p1.Merge(p2)
	dc, ok := p1.GetDatacenter("dc1")
	require.True(t, ok)
	require.Len(t, dc.Rows, 1)
	require.Len(t, dc.Rows[0], 1)
	assert.ElementsMatch(t, []string{"seed", "r1", "r2"}, dc.Rows[0][0])
}
