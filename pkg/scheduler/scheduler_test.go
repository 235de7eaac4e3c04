package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/model"
)

func newTestScheduler(t *testing.T, shares map[string]int) (*Scheduler, *model.Model, *clock.Clock) {
	t.Helper()
	m := model.New()
	c := clock.New("p1", time.Minute)
	s := NewScheduler(m, c, shares, 0)
	return s, m, c
}

func upsertCompute(t *testing.T, m *model.Model, id string, cpu, mem float64, ts clock.Timestamp) {
	t.Helper()
	require.NoError(t, m.UpsertResource(id, model.ResourceKindCompute, model.CapacityVector{"cpu": cpu, "memory": mem}, nil, ts))
	require.NoError(t, m.SetResourceState(id, model.ResourceStateActive, ts))
}

func TestSchedulerAdmitsAndPlacesSimpleClaim(t *testing.T) {
	s, m, c := newTestScheduler(t, nil)
	ts := c.Now()
	upsertCompute(t, m, "r1", 4, 16, ts)

	m.SubmitClaim(model.ClaimRequest{
		ID:     "claim-1",
		Tenant: "tenant-a",
		Kind:   model.ClaimKindTenant,
		Window: model.Window{StartMs: 1000, EndMs: 2000},
		Profiles: []model.ResourceProfile{
			{ID: "p1", Kind: model.ResourceKindCompute, Quantity: 1},
		},
	}, c.Now())

	s.Reconcile()

	claim, ok := m.GetClaim("claim-1")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPlaced, claim.Status)
	require.Equal(t, []string{"r1"}, claim.Placements["p1"])
}

func TestSchedulerRejectsWhenInsufficientCapacity(t *testing.T) {
	s, m, c := newTestScheduler(t, nil)
	upsertCompute(t, m, "r1", 4, 16, c.Now())

	m.SubmitClaim(model.ClaimRequest{
		ID:     "claim-1",
		Tenant: "tenant-a",
		Window: model.Window{StartMs: 1000, EndMs: 2000},
		Profiles: []model.ResourceProfile{
			{ID: "p1", Kind: model.ResourceKindCompute, Quantity: 5},
		},
	}, c.Now())

	s.Reconcile()

	claim, ok := m.GetClaim("claim-1")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusRejected, claim.Status)
}

func TestSchedulerExpiresPlacedClaimPastWindow(t *testing.T) {
	s, m, c := newTestScheduler(t, nil)
	upsertCompute(t, m, "r1", 4, 16, c.Now())

	m.SubmitClaim(model.ClaimRequest{
		ID:     "claim-1",
		Tenant: "tenant-a",
		Window: model.Window{StartMs: 0, EndMs: 1},
		Profiles: []model.ResourceProfile{
			{ID: "p1", Kind: model.ResourceKindCompute, Quantity: 1},
		},
	}, c.Now())

	s.Reconcile()
	claim, ok := m.GetClaim("claim-1")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPlaced, claim.Status)

	s.Reconcile()
	claim, ok = m.GetClaim("claim-1")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusExpired, claim.Status)
	require.Empty(t, claim.Placements)
}

func TestSchedulerFairShareFavorsHigherWeightTenant(t *testing.T) {
	s, m, c := newTestScheduler(t, map[string]int{"gold": 4, "bronze": 1})
	upsertCompute(t, m, "r1", 4, 16, c.Now())

	// Both tenants ask for the sole compute resource in the same window;
	// only one can win. bronze is submitted first but gold's higher share
	// weight should still let it be ranked (and admitted) first.
	m.SubmitClaim(model.ClaimRequest{
		ID: "bronze-claim", Tenant: "bronze",
		Window:   model.Window{StartMs: 1000, EndMs: 2000},
		Profiles: []model.ResourceProfile{{ID: "pb", Kind: model.ResourceKindCompute, Quantity: 1}},
	}, c.Now())
	m.SubmitClaim(model.ClaimRequest{
		ID: "gold-claim", Tenant: "gold",
		Window:   model.Window{StartMs: 1000, EndMs: 2000},
		Profiles: []model.ResourceProfile{{ID: "pg", Kind: model.ResourceKindCompute, Quantity: 1}},
	}, c.Now())

	s.Reconcile()

	gold, ok := m.GetClaim("gold-claim")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPlaced, gold.Status)

	bronze, ok := m.GetClaim("bronze-claim")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusRejected, bronze.Status)
}

func TestSchedulerResolvesConcurrentPlacementConflict(t *testing.T) {
	s, m, c := newTestScheduler(t, nil)
	upsertCompute(t, m, "r1", 4, 16, c.Now())

	window := model.Window{StartMs: 1000, EndMs: 2000}
	m.SubmitClaim(model.ClaimRequest{ID: "claim-a", Tenant: "t1", Window: window}, c.Now())
	m.SubmitClaim(model.ClaimRequest{ID: "claim-b", Tenant: "t2", Window: window}, c.Now())

	earlier := c.Now()
	later := c.Now()
	m.SetAdmittedAt("claim-a", earlier)
	m.SetAdmittedAt("claim-b", later)
	require.NoError(t, m.SetPlacement("claim-a", "pa", []string{"r1"}, earlier))
	require.NoError(t, m.SetClaimStatus("claim-a", model.ClaimStatusPlaced, earlier))
	require.NoError(t, m.SetPlacement("claim-b", "pb", []string{"r1"}, later))
	require.NoError(t, m.SetClaimStatus("claim-b", model.ClaimStatusPlaced, later))

	s.resolveConflicts(c.Now())

	a, ok := m.GetClaim("claim-a")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPlaced, a.Status)

	b, ok := m.GetClaim("claim-b")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPending, b.Status)
	require.Empty(t, b.Placements)
}

func TestSchedulerFairShareSplitsScarceCapacityProportionally(t *testing.T) {
	s, m, c := newTestScheduler(t, map[string]int{"t1": 1, "t2": 3})
	for i := 0; i < 16; i++ {
		upsertCompute(t, m, "r"+string(rune('a'+i)), 1, 4, c.Now())
	}

	window := model.Window{StartMs: 1000, EndMs: 2000}
	m.SubmitClaim(model.ClaimRequest{
		ID: "t1-claim", Tenant: "t1",
		Window:   window,
		Profiles: []model.ResourceProfile{{ID: "p1", Kind: model.ResourceKindCompute, Quantity: 8}},
	}, c.Now())
	m.SubmitClaim(model.ClaimRequest{
		ID: "t2-claim", Tenant: "t2",
		Window:   window,
		Profiles: []model.ResourceProfile{{ID: "p2", Kind: model.ResourceKindCompute, Quantity: 16}},
	}, c.Now())

	s.Reconcile()

	t1, ok := m.GetClaim("t1-claim")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPlaced, t1.Status)
	require.Len(t, t1.Placements["p1"], 4)

	t2, ok := m.GetClaim("t2-claim")
	require.True(t, ok)
	require.Equal(t, model.ClaimStatusPlaced, t2.Status)
	require.Len(t, t2.Placements["p2"], 12)
}

func TestSchedulerFiresPlacedHookWithPlacements(t *testing.T) {
	s, m, c := newTestScheduler(t, nil)
	upsertCompute(t, m, "r1", 4, 16, c.Now())

	var hookClaim model.Claim
	var hookPlacements map[string][]string
	s.SetPlacedHook(func(claim model.Claim, placements map[string][]string) {
		hookClaim = claim
		hookPlacements = placements
	})

	m.SubmitClaim(model.ClaimRequest{
		ID:     "claim-1",
		Tenant: "tenant-a",
		Window: model.Window{StartMs: 1000, EndMs: 2000},
		Profiles: []model.ResourceProfile{
			{ID: "p1", Kind: model.ResourceKindCompute, Quantity: 1},
		},
	}, c.Now())

	s.Reconcile()

	require.Equal(t, "claim-1", hookClaim.ID)
	require.Equal(t, []string{"r1"}, hookPlacements["p1"])
}

func TestSchedulerStartStopDoesNotPanic(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	s.interval = 10 * time.Millisecond
	s.Start()
	time.Sleep(15 * time.Millisecond)
	s.Stop()
}
