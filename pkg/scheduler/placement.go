package scheduler

import (
	"sort"

	"github.com/witlox/horao/pkg/model"
)

// occupancy tracks, per resource id, the windows during which a placed
// claim (or maintenance event) already holds it.
type occupancy map[string][]model.Window

// buildOccupancy derives occupancy from every currently placed claim's
// recorded placements.
func buildOccupancy(claims []model.Claim) occupancy {
	out := make(occupancy)
	for _, c := range claims {
		if c.Status != model.ClaimStatusPlaced {
			continue
		}
		for _, resourceIDs := range c.Placements {
			for _, rid := range resourceIDs {
				out[rid] = append(out[rid], c.Window)
			}
		}
	}
	return out
}

func isFree(occ occupancy, resourceID string, window model.Window) bool {
	for _, w := range occ[resourceID] {
		if w.Overlaps(window) {
			return false
		}
	}
	return true
}

// matches reports whether r satisfies a profile's kind and required
// attributes and is currently active.
func matches(r model.Resource, kind model.ResourceKind, required map[string]string) bool {
	if r.Kind != kind || r.State != model.ResourceStateActive {
		return false
	}
	for k, v := range required {
		if r.Attributes[k] != v {
			return false
		}
	}
	return true
}

// placeProfile assigns quantity resources matching profile's kind and
// required attributes, free for the entire window, preferring the
// least-loaded (fewest already-recorded future placements) and breaking
// ties by resource id. Returns ok=false if fewer than quantity qualify.
func placeProfile(resources []model.Resource, occ occupancy, profile model.ResourceProfile, window model.Window) ([]string, bool) {
	type ranked struct {
		id   string
		load int
	}
	var cands []ranked
	for _, r := range resources {
		if !matches(r, profile.Kind, profile.RequiredAttrs) {
			continue
		}
		if !isFree(occ, r.ID, window) {
			continue
		}
		cands = append(cands, ranked{id: r.ID, load: len(occ[r.ID])})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].load != cands[j].load {
			return cands[i].load < cands[j].load
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) < profile.Quantity {
		return nil, false
	}
	chosen := make([]string, profile.Quantity)
	for i := range chosen {
		chosen[i] = cands[i].id
	}
	return chosen, true
}

// placeClaim attempts to place every profile of claim against resources,
// reserving each chosen resource in occ as it succeeds so that two
// profiles of the same claim — or two claims placed in the same cycle —
// never double-book a resource. On failure every reservation placeClaim
// itself added is rolled back and ok is false; occ is left untouched by a
// failed attempt.
func placeClaim(resources []model.Resource, occ occupancy, claim model.Claim, getProfile func(id string) (model.ResourceProfile, bool)) (map[string][]string, bool) {
	placements := make(map[string][]string, len(claim.ProfileIDs))
	type reservation struct{ id string }
	var reserved []reservation

	rollback := func() {
		for _, r := range reserved {
			occ[r.id] = occ[r.id][:len(occ[r.id])-1]
		}
	}

	for _, pid := range claim.ProfileIDs {
		p, ok := getProfile(pid)
		if !ok {
			continue
		}
		chosen, ok := placeProfile(resources, occ, p, claim.Window)
		if !ok {
			rollback()
			return nil, false
		}
		placements[pid] = chosen
		for _, rid := range chosen {
			occ[rid] = append(occ[rid], claim.Window)
			reserved = append(reserved, reservation{id: rid})
		}
	}
	return placements, true
}

// AvailabilityOracle reports the maximum quantity of resources matching
// kind/attrs that can be placed simultaneously for window's duration, and
// the earliest start at or after window.StartMs at which the full
// requested quantity is achievable. Deterministic given identical
// resources and occupancy; callers building a preview (e.g. horao claim
// preview) pass in buildOccupancy(m.ListClaims()) without submitting
// anything.
func AvailabilityOracle(resources []model.Resource, occ occupancy, kind model.ResourceKind, attrs map[string]string, window model.Window, quantity int) (maxAchievable int, firstStart int64) {
	var candidates []model.Resource
	for _, r := range resources {
		if matches(r, kind, attrs) {
			candidates = append(candidates, r)
		}
	}
	duration := window.EndMs - window.StartMs

	achievableAt := func(start int64) int {
		trial := model.Window{StartMs: start, EndMs: start + duration}
		count := 0
		for _, r := range candidates {
			if isFree(occ, r.ID, trial) {
				count++
			}
		}
		return count
	}

	// Candidate start times beyond window.StartMs: only a busy interval's
	// end can newly free up a resource, so those are the only instants
	// worth re-checking.
	starts := map[int64]bool{}
	for _, r := range candidates {
		for _, w := range occ[r.ID] {
			if w.EndMs >= window.StartMs {
				starts[w.EndMs] = true
			}
		}
	}
	sorted := make([]int64, 0, len(starts))
	for s := range starts {
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	maxAchievable = achievableAt(window.StartMs)
	firstStart = window.StartMs
	if maxAchievable >= quantity {
		return maxAchievable, firstStart
	}
	for _, s := range sorted {
		count := achievableAt(s)
		if count > maxAchievable {
			maxAchievable = count
		}
		if count >= quantity {
			return maxAchievable, s
		}
	}
	return maxAchievable, firstStart
}
