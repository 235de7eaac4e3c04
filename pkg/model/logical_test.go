package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignLogicalSlotFailsUnknownGroup(t *testing.T) {
	m := New()
	err := m.AssignLogicalSlot("missing", "slot-1", "r1", mts(1, "p1"))
	var want *UnknownLogicalGroupError
	require.ErrorAs(t, err, &want)
}

func TestLogicalGroupConcurrentAssignmentsSurfaceAsSiblings(t *testing.T) {
	seed := New()
	seed.CreateLogicalGroup("lg1", "prod", mts(1, "p1"))

	p1 := New()
	p1.Merge(seed)
	require.NoError(t, p1.AssignLogicalSlot("lg1", "slot-1", "r1", mts(100, "p1")))

	p2 := New()
	p2.Merge(seed)
	require.NoError(t, p2.AssignLogicalSlot("lg1", "slot-1", "r2", mts(100, "p2")))

	p1.Merge(p2)
	lg, ok := p1.GetLogicalGroup("lg1")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"r1", "r2"}, lg.Members["slot-1"])
}

func TestUnassignLogicalSlotClearsSiblings(t *testing.T) {
	m := New()
	m.CreateLogicalGroup("lg1", "prod", mts(1, "p1"))
	require.NoError(t, m.AssignLogicalSlot("lg1", "slot-1", "r1", mts(2, "p1")))
	require.NoError(t, m.UnassignLogicalSlot("lg1", "slot-1", mts(3, "p1")))

	lg, ok := m.GetLogicalGroup("lg1")
	require.True(t, ok)
	assert.Empty(t, lg.Members["slot-1"])
}
