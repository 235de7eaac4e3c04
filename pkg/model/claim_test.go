package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitClaimThenGet(t *testing.T) {
	m := New()
	claim := m.SubmitClaim(ClaimRequest{
		ID:       "c1",
		Tenant:   "t1",
		Kind:     ClaimKindTenant,
		Priority: 1,
		Window:   Window{StartMs: 0, EndMs: 3600_000},
		Profiles: []ResourceProfile{{ID: "p1", Kind: ResourceKindCompute, Quantity: 8}},
	}, mts(1, "p1"))

	assert.Equal(t, ClaimStatusPending, claim.Status)
	assert.Equal(t, []string{"p1"}, claim.ProfileIDs)

	prof, ok := m.GetProfile("p1")
	require.True(t, ok)
	assert.Equal(t, 8, prof.Quantity)
}

func TestWithdrawClaimFailsUnknown(t *testing.T) {
	m := New()
	err := m.WithdrawClaim("missing", mts(1, "p1"))
	var want *UnknownClaimError
	require.ErrorAs(t, err, &want)
}

func TestWithdrawClaimClearsProfilesAndRejects(t *testing.T) {
	m := New()
	m.SubmitClaim(ClaimRequest{
		ID:       "c1",
		Tenant:   "t1",
		Window:   Window{StartMs: 0, EndMs: 1000},
		Profiles: []ResourceProfile{{ID: "p1", Kind: ResourceKindCompute, Quantity: 1}},
	}, mts(1, "p1"))

	require.NoError(t, m.WithdrawClaim("c1", mts(2, "p1")))

	claim, ok := m.GetClaim("c1")
	require.True(t, ok)
	assert.Equal(t, ClaimStatusRejected, claim.Status)
	assert.Empty(t, claim.ProfileIDs)
}

func TestSetPlacementAndClearPlacements(t *testing.T) {
	m := New()
	m.SubmitClaim(ClaimRequest{ID: "c1", Tenant: "t1", Window: Window{EndMs: 1000}}, mts(1, "p1"))
	require.NoError(t, m.SetPlacement("c1", "p1", []string{"r1", "r2"}, mts(2, "p1")))

	claim, ok := m.GetClaim("c1")
	require.True(t, ok)
	assert.Equal(t, []string{"r1", "r2"}, claim.Placements["p1"])

	require.NoError(t, m.ClearPlacements("c1", mts(3, "p1")))
	claim, ok = m.GetClaim("c1")
	require.True(t, ok)
	assert.Empty(t, claim.Placements)
}

func TestWindowOverlaps(t *testing.T) {
	a := Window{StartMs: 0, EndMs: 100}
	b := Window{StartMs: 50, EndMs: 150}
	c := Window{StartMs: 100, EndMs: 200}
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
}

func TestModelMergeClaimsConverge(t *testing.T) {
	p1 := New()
	p1.SubmitClaim(ClaimRequest{ID: "c1", Tenant: "t1", Window: Window{EndMs: 1000}}, mts(100, "p1"))

	p2 := New()
	p2.SubmitClaim(ClaimRequest{ID: "c2", Tenant: "t2", Window: Window{EndMs: 1000}}, mts(101, "p2"))

	p1.Merge(p2)
	_, ok1 := p1.GetClaim("c1")
	_, ok2 := p1.GetClaim("c2")
	assert.True(t, ok1)
	assert.True(t, ok2)
}
