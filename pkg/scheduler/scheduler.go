package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/log"
	"github.com/witlox/horao/pkg/metrics"
	"github.com/witlox/horao/pkg/model"
)

// PlacedHook is invoked after a claim transitions to placed, with the
// claim's merged view and its recorded placements. pkg/controller wires
// this to its placement_hook fan-out so provider adapters can veto.
type PlacedHook func(claim model.Claim, placements map[string][]string)

// Scheduler runs the claim admission/placement/expiry state machine
// against a shared model.Model on a ticker. It is a stateless
// reconciliation loop: every cycle reads current state fresh from the
// model and writes decisions back through the model's own CRDT
// operations, holding no cluster state of its own beyond tenant share
// configuration.
type Scheduler struct {
	model  *model.Model
	clock  *clock.Clock
	shares map[string]int

	onPlaced PlacedHook

	logger    zerolog.Logger
	mu        sync.Mutex
	lastCycle time.Time
	stopCh    chan struct{}
	interval  time.Duration
}

// NewScheduler builds a scheduler over m, stamping every decision with
// timestamps from c. shares maps tenant to its integer fair-share weight;
// a tenant absent from shares gets the default weight of 1. interval<=0
// falls back to a 5 second cadence.
func NewScheduler(m *model.Model, c *clock.Clock, shares map[string]int, interval time.Duration) *Scheduler {
	return &Scheduler{
		model:    m,
		clock:    c,
		shares:   shares,
		logger:   log.WithComponent("scheduler"),
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

// SetPlacedHook installs the hook described on PlacedHook. Call before
// Start; the hook runs on the reconciliation goroutine, so it should
// return promptly.
func (s *Scheduler) SetPlacedHook(h PlacedHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPlaced = h
}

// Start begins the reconciliation loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the reconciliation loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Msg("scheduler started")
	for {
		select {
		case <-ticker.C:
			s.Reconcile()
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler stopped")
			return
		}
	}
}

// Reconcile runs one full cycle: conflict resolution, admission,
// placement, then expiry, in that order. Exported so callers can drive a
// cycle synchronously — after submitting a claim, or after a gossip merge
// that may have introduced a capacity conflict — instead of waiting on
// the ticker.
func (s *Scheduler) Reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	now := s.clock.Now()
	s.resolveConflicts(now)
	s.admit(now)
	// Placement takes its own, later stamp so its admitted → placed write
	// supersedes the admission written at now in this same cycle. Expiry
	// keeps the cycle's start stamp: a claim placed during this cycle
	// holds a newer status than that stamp, so it stays placed and is
	// expired by a later cycle.
	s.place(s.clock.Now())
	s.expire(now)

	s.lastCycle = time.Now()
	metrics.ReconciliationCyclesTotal.Inc()
}

// LastReconcile returns when the most recent reconciliation cycle
// completed, zero if none has run yet. Backs the daemon's scheduler
// health probe.
func (s *Scheduler) LastReconcile() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycle
}

// admit ranks every pending claim by fair-share order and admits each in
// turn if the availability oracle confirms every profile's requested
// quantity is physically achievable for its window; otherwise the claim
// is rejected outright. Admission does not reserve resources against
// concurrently-admitted claims in the same cycle — placement is what
// reserves — so a later claim's oracle check only accounts for an earlier
// claim in the same cycle through the held-demand fair-share ranking, not
// through occupancy.
func (s *Scheduler) admit(now clock.Timestamp) {
	claims := s.model.ListClaims()
	resources := s.model.ListResources()
	pool := poolCapacity(resources)
	occ := buildOccupancy(claims)

	var pending []model.Claim
	held := make(map[string]map[model.ResourceKind]int)
	for _, c := range claims {
		switch c.Status {
		case model.ClaimStatusPending:
			pending = append(pending, c)
		case model.ClaimStatusAdmitted, model.ClaimStatusPlaced:
			if c.Kind == model.ClaimKindMaintenance {
				continue
			}
			demand := held[c.Tenant]
			if demand == nil {
				demand = make(map[model.ResourceKind]int)
				held[c.Tenant] = demand
			}
			for _, pid := range c.ProfileIDs {
				p, ok := s.model.GetProfile(pid)
				if !ok {
					continue
				}
				demand[p.Kind] += p.Quantity
			}
		}
	}

	ranked := rankPending(pending, held, pool, s.model.GetProfile, s.shares)
	for _, cand := range ranked {
		timer := metrics.NewTimer()
		admitted := s.admitOne(cand, resources, occ, now)
		timer.ObserveDuration(metrics.AdmissionLatency)

		if admitted {
			metrics.ClaimsAdmitted.Inc()
			demand := held[cand.claim.Tenant]
			if demand == nil {
				demand = make(map[model.ResourceKind]int)
				held[cand.claim.Tenant] = demand
			}
			for k, v := range cand.demand {
				demand[k] += v
			}
		} else {
			metrics.ClaimsRejected.Inc()
		}
	}
}

// admitOne checks every profile of cand against the availability oracle
// and transitions the claim to admitted or rejected accordingly.
func (s *Scheduler) admitOne(cand candidate, resources []model.Resource, occ occupancy, now clock.Timestamp) bool {
	for _, pid := range cand.claim.ProfileIDs {
		p, ok := s.model.GetProfile(pid)
		if !ok {
			continue
		}
		achievable, _ := AvailabilityOracle(resources, occ, p.Kind, p.RequiredAttrs, cand.claim.Window, p.Quantity)
		if achievable < p.Quantity {
			_ = s.model.SetClaimStatus(cand.claim.ID, model.ClaimStatusRejected, now)
			return false
		}
	}
	_ = s.model.SetClaimStatus(cand.claim.ID, model.ClaimStatusAdmitted, now)
	s.model.SetAdmittedAt(cand.claim.ID, now)
	return true
}

// place resolves every admitted claim against currently active
// resources in two passes. Maintenance events are all-or-nothing (they
// don't carry a tenant share to split proportionally) and are placed
// first, in stable claim-id order, reserving what they take before
// tenant claims are considered. Remaining tenant claims are ranked by
// the same fair-share order admission uses, then placed together: when
// several contend for the same kind/attrs/window pool and demand
// exceeds supply, each gets a share of what's free proportional to its
// tenant's weight (waterFill in contention.go) rather than whichever
// claim's placement attempt happened to run first. A claim that doesn't
// get at least one resource for every one of its profiles stays admitted
// for retry next cycle, unless its window has already started — "fails
// at activation" — in which case it is rejected.
func (s *Scheduler) place(now clock.Timestamp) {
	claims := s.model.ListClaims()
	resources := s.model.ListResources()
	pool := poolCapacity(resources)
	occ := buildOccupancy(claims)

	var maintenance, tenant []model.Claim
	for _, c := range claims {
		if c.Status != model.ClaimStatusAdmitted {
			continue
		}
		if c.Kind == model.ClaimKindMaintenance {
			maintenance = append(maintenance, c)
		} else {
			tenant = append(tenant, c)
		}
	}
	sort.Slice(maintenance, func(i, j int) bool { return maintenance[i].ID < maintenance[j].ID })

	for _, c := range maintenance {
		s.placeWhole(c, resources, occ, now)
	}

	held := make(map[string]map[model.ResourceKind]int)
	for _, c := range claims {
		if c.Status != model.ClaimStatusPlaced || c.Kind == model.ClaimKindMaintenance {
			continue
		}
		demand := held[c.Tenant]
		if demand == nil {
			demand = make(map[model.ResourceKind]int)
			held[c.Tenant] = demand
		}
		for _, pid := range c.ProfileIDs {
			if p, ok := s.model.GetProfile(pid); ok {
				demand[p.Kind] += p.Quantity
			}
		}
	}
	ranked := rankPending(tenant, held, pool, s.model.GetProfile, s.shares)

	s.placeRanked(ranked, resources, occ, now)
}

// placeWhole places c against resources/occ with no proportional split:
// every profile gets its full requested quantity or the claim stays
// admitted (or rejects at activation).
func (s *Scheduler) placeWhole(c model.Claim, resources []model.Resource, occ occupancy, now clock.Timestamp) {
	timer := metrics.NewTimer()
	placements, ok := placeClaim(resources, occ, c, s.model.GetProfile)
	timer.ObserveDuration(metrics.PlacementDuration)

	if ok {
		for profileID, resourceIDs := range placements {
			_ = s.model.SetPlacement(c.ID, profileID, resourceIDs, now)
		}
		_ = s.model.SetClaimStatus(c.ID, model.ClaimStatusPlaced, now)
		s.notifyPlaced(c.ID)
		return
	}
	if now.WallMs >= c.Window.StartMs {
		_ = s.model.SetClaimStatus(c.ID, model.ClaimStatusRejected, now)
	}
}

// placeRanked places every claim in ranked (fair-share order, most
// entitled first) together: their profiles are grouped by contention key
// and water-filled as a batch, so the quantity each claim gets reflects
// its tenant's share of genuinely scarce capacity instead of processing
// order. A claim is placed only once every one of its profiles received
// at least one resource.
func (s *Scheduler) placeRanked(ranked []candidate, resources []model.Resource, occ occupancy, now clock.Timestamp) {
	var demands []profileDemand
	for _, cand := range ranked {
		weight := shareFor(s.shares, cand.claim.Tenant)
		for _, pid := range cand.claim.ProfileIDs {
			p, ok := s.model.GetProfile(pid)
			if !ok {
				continue
			}
			demands = append(demands, profileDemand{
				claimID:   cand.claim.ID,
				profileID: pid,
				quantity:  p.Quantity,
				weight:    weight,
				kind:      p.Kind,
				attrs:     p.RequiredAttrs,
				window:    cand.claim.Window,
			})
		}
	}

	timer := metrics.NewTimer()
	placements := make(map[string]map[string][]string, len(ranked))
	for _, group := range groupByContention(demands) {
		ids := allocateGroup(resources, occ, group)
		for i, d := range group {
			if len(ids[i]) == 0 {
				continue
			}
			byProfile := placements[d.claimID]
			if byProfile == nil {
				byProfile = make(map[string][]string)
				placements[d.claimID] = byProfile
			}
			byProfile[d.profileID] = ids[i]
		}
	}
	timer.ObserveDuration(metrics.PlacementDuration)

	for _, cand := range ranked {
		c := cand.claim
		byProfile := placements[c.ID]
		complete := true
		for _, pid := range c.ProfileIDs {
			if len(byProfile[pid]) == 0 {
				complete = false
				break
			}
		}
		if complete {
			for pid, rids := range byProfile {
				_ = s.model.SetPlacement(c.ID, pid, rids, now)
			}
			_ = s.model.SetClaimStatus(c.ID, model.ClaimStatusPlaced, now)
			s.notifyPlaced(c.ID)
			continue
		}
		if now.WallMs >= c.Window.StartMs {
			_ = s.model.SetClaimStatus(c.ID, model.ClaimStatusRejected, now)
		}
	}
}

// notifyPlaced fires the placed hook with the claim's freshly-written
// state. The hook may itself write back through the model (reverting the
// claim, degrading resources); those writes land as ordinary CRDT ops
// picked up on the next cycle.
func (s *Scheduler) notifyPlaced(claimID string) {
	if s.onPlaced == nil {
		return
	}
	if c, ok := s.model.GetClaim(claimID); ok {
		s.onPlaced(c, c.Placements)
	}
}

// expire transitions every placed claim whose window has ended to
// expired, freeing its placements.
func (s *Scheduler) expire(now clock.Timestamp) {
	for _, c := range s.model.ListClaims() {
		if c.Status == model.ClaimStatusPlaced && now.WallMs >= c.Window.EndMs {
			_ = s.model.ClearPlacements(c.ID, now)
			_ = s.model.SetClaimStatus(c.ID, model.ClaimStatusExpired, now)
		}
	}
}

// resolveConflicts scans placed claims for a resource double-booked
// within overlapping windows — possible once two peers have each
// admitted and placed a conflicting claim before observing the other's
// writes — and reverts the loser to pending per the admission conflict
// tiebreak: the claim with the larger (admitted_at, claim_id) tuple gives
// up its placement and is re-evaluated on the next admission pass.
func (s *Scheduler) resolveConflicts(now clock.Timestamp) {
	claims := s.model.ListClaims()
	type holder struct {
		claimID string
		window  model.Window
	}
	byResource := make(map[string][]holder)
	for _, c := range claims {
		if c.Status != model.ClaimStatusPlaced {
			continue
		}
		for _, rids := range c.Placements {
			for _, rid := range rids {
				byResource[rid] = append(byResource[rid], holder{claimID: c.ID, window: c.Window})
			}
		}
	}

	losers := make(map[string]bool)
	for _, holders := range byResource {
		for i := 0; i < len(holders); i++ {
			for j := i + 1; j < len(holders); j++ {
				if holders[i].claimID == holders[j].claimID {
					continue
				}
				if holders[i].window.Overlaps(holders[j].window) {
					losers[s.pickLoser(holders[i].claimID, holders[j].claimID)] = true
				}
			}
		}
	}

	for claimID := range losers {
		_ = s.model.ClearPlacements(claimID, now)
		_ = s.model.SetClaimStatus(claimID, model.ClaimStatusPending, now)
	}
}

// pickLoser returns whichever of a, b should revert to pending: the
// larger (admitted_at, claim_id) tuple. A claim with no recorded
// admission timestamp always loses to one that has it.
func (s *Scheduler) pickLoser(a, b string) string {
	aTs, aOK := s.model.AdmittedAt(a)
	bTs, bOK := s.model.AdmittedAt(b)
	if !aOK {
		return a
	}
	if !bOK {
		return b
	}
	if aTs.Less(bTs) {
		return b
	}
	if bTs.Less(aTs) {
		return a
	}
	if a < b {
		return b
	}
	return a
}
