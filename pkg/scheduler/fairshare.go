package scheduler

import (
	"sort"

	"github.com/witlox/horao/pkg/model"
)

// Fair-share accounting approximates Dominant Resource Fairness over
// resource kind as the capacity dimension. A ResourceProfile asks for a
// quantity of a kind (compute/network/storage), not a literal cpu/memory
// amount, so kind is the only demand dimension a claim actually carries —
// this package does not invent a finer-grained one. A tenant's dominant
// share is the largest, across kinds, of (quantity the tenant currently
// holds of that kind) / (total resources of that kind in the pool),
// divided by the tenant's configured share weight so better-entitled
// tenants compare as less loaded for the same raw usage. This is a
// current-instant comparison, re-derived every cycle from
// currently-admitted-plus-placed claims, not integrated over a claim's
// whole window — see DESIGN.md.

// poolCapacity counts resources per kind across every non-offline
// resource; draining resources still count since they can finish serving
// claims already placed on them.
func poolCapacity(resources []model.Resource) map[model.ResourceKind]int {
	out := make(map[model.ResourceKind]int)
	for _, r := range resources {
		if r.State == model.ResourceStateOffline {
			continue
		}
		out[r.Kind]++
	}
	return out
}

// shareFor returns a tenant's configured fair-share weight, defaulting to
// 1 when absent or non-positive.
func shareFor(shares map[string]int, tenant string) int {
	if s, ok := shares[tenant]; ok && s > 0 {
		return s
	}
	return 1
}

// dominantShare returns the largest, across kinds, of demand[kind] /
// pool[kind]. A kind absent from pool (no resources of that kind exist at
// all) is skipped rather than treated as an infinite share.
func dominantShare(demand, pool map[model.ResourceKind]int) float64 {
	var max float64
	for kind, total := range pool {
		if total <= 0 {
			continue
		}
		ratio := float64(demand[kind]) / float64(total)
		if ratio > max {
			max = ratio
		}
	}
	return max
}

// candidate is one pending claim ranked for an admission pass.
type candidate struct {
	claim           model.Claim
	demand          map[model.ResourceKind]int
	shareIfAdmitted float64
}

// rankPending orders pending claims for one admission pass: ascending by
// the tenant's weighted dominant share ratio if this claim were admitted
// on top of everything the tenant already holds (smallest share served
// first), then by priority descending, earliest window start, then
// stable claim id.
func rankPending(pending []model.Claim, held map[string]map[model.ResourceKind]int, pool map[model.ResourceKind]int, getProfile func(id string) (model.ResourceProfile, bool), shares map[string]int) []candidate {
	out := make([]candidate, 0, len(pending))
	for _, c := range pending {
		demand := make(map[model.ResourceKind]int)
		for _, pid := range c.ProfileIDs {
			p, ok := getProfile(pid)
			if !ok {
				continue
			}
			demand[p.Kind] += p.Quantity
		}

		projected := make(map[model.ResourceKind]int)
		for k, v := range held[c.Tenant] {
			projected[k] = v
		}
		for k, v := range demand {
			projected[k] += v
		}

		share := dominantShare(projected, pool)
		if c.Kind != model.ClaimKindMaintenance {
			share /= float64(shareFor(shares, c.Tenant))
		}
		out = append(out, candidate{claim: c, demand: demand, shareIfAdmitted: share})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.shareIfAdmitted != b.shareIfAdmitted {
			return a.shareIfAdmitted < b.shareIfAdmitted
		}
		if a.claim.Priority != b.claim.Priority {
			return a.claim.Priority > b.claim.Priority
		}
		if a.claim.Window.StartMs != b.claim.Window.StartMs {
			return a.claim.Window.StartMs < b.claim.Window.StartMs
		}
		return a.claim.ID < b.claim.ID
	})
	return out
}
