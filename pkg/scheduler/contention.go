package scheduler

import (
	"sort"
	"strings"

	"github.com/witlox/horao/pkg/model"
)

// contentionKey identifies a pool of resources several admitted claims
// may be competing for in the same placement pass: same kind, same
// required-attribute signature, and the same window (claims with
// different windows don't contend for the same time slice even if they
// want the same kind/attrs).
type contentionKey struct {
	kind   model.ResourceKind
	attrs  string
	window model.Window
}

// attrsSignature canonicalizes a required-attributes map into a stable
// string so it can key a map or be compared for equality regardless of
// the map's iteration order.
func attrsSignature(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(attrs[k])
		b.WriteByte(',')
	}
	return b.String()
}

// profileDemand is one profile's ask, carrying enough of its owning
// claim and tenant to be ranked and grouped for proportional placement.
type profileDemand struct {
	claimID   string
	profileID string
	quantity  int
	weight    int
	kind      model.ResourceKind
	attrs     map[string]string
	window    model.Window
}

// groupByContention buckets demands sharing a contentionKey, preserving
// the order demands first appear in (the caller's fair-share rank order)
// as the order groups themselves are later processed in.
func groupByContention(demands []profileDemand) [][]profileDemand {
	index := make(map[contentionKey]int)
	var groups [][]profileDemand
	for _, d := range demands {
		key := contentionKey{kind: d.kind, attrs: attrsSignature(d.attrs), window: d.window}
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], d)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []profileDemand{d})
	}
	return groups
}

// allocateGroup resolves one contention group against resources and the
// shared occupancy map: it picks the group's free, least-loaded
// candidates, splits them across the group's members via waterFill, and
// reserves each member's chosen resource ids into occ before returning —
// so a later group sharing part of the same candidate pool (e.g. one
// profile requires no attrs and another requires a subset that's a
// strict match of the same resources) never double-books what this
// group already claimed.
func allocateGroup(resources []model.Resource, occ occupancy, group []profileDemand) [][]string {
	rep := group[0]
	var candidates []model.Resource
	for _, r := range resources {
		if matches(r, rep.kind, rep.attrs) && isFree(occ, r.ID, rep.window) {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		li, lj := len(occ[candidates[i].ID]), len(occ[candidates[j].ID])
		if li != lj {
			return li < lj
		}
		return candidates[i].ID < candidates[j].ID
	})

	demand := make([]int, len(group))
	weight := make([]int, len(group))
	for i, d := range group {
		demand[i] = d.quantity
		weight[i] = d.weight
	}
	alloc := waterFill(len(candidates), demand, weight)

	out := make([][]string, len(group))
	cursor := 0
	for i, n := range alloc {
		if n <= 0 {
			continue
		}
		ids := candidates[cursor : cursor+n]
		cursor += n
		chosen := make([]string, n)
		for j, r := range ids {
			chosen[j] = r.ID
			occ[r.ID] = append(occ[r.ID], group[i].window)
		}
		out[i] = chosen
	}
	return out
}

// waterFill splits capacity units across len(demand) contenders, each
// entitled to a share proportional to weight[i] but capped at demand[i]:
// a contender whose raw proportional share would exceed what it asked
// for is capped at its own demand, and the capacity that frees up is
// re-distributed proportionally among everyone still under their
// demand. This is max-min fair sharing, not a single greedy split — a
// low-weight contender whose demand fits under capacity still gets it in
// full rather than being starved by a high-weight contender's larger
// ask. Converges in at most len(demand) rounds, since each round either
// exhausts the remaining capacity or caps at least one more contender.
func waterFill(capacity int, demand, weight []int) []int {
	n := len(demand)
	alloc := make([]int, n)
	capped := make([]bool, n)
	remaining := capacity

	for round := 0; round < n && remaining > 0; round++ {
		sumW := 0
		for i := 0; i < n; i++ {
			if !capped[i] && demand[i] > alloc[i] {
				sumW += weight[i]
			}
		}
		if sumW == 0 {
			break
		}

		type share struct {
			idx    int
			amount int
			frac   float64
		}
		var shares []share
		used := 0
		for i := 0; i < n; i++ {
			if capped[i] || demand[i] <= alloc[i] {
				continue
			}
			raw := float64(remaining) * float64(weight[i]) / float64(sumW)
			amt := int(raw)
			shares = append(shares, share{idx: i, amount: amt, frac: raw - float64(amt)})
			used += amt
		}
		left := remaining - used
		sort.SliceStable(shares, func(a, b int) bool {
			if shares[a].frac != shares[b].frac {
				return shares[a].frac > shares[b].frac
			}
			return shares[a].idx < shares[b].idx
		})
		for k := 0; k < left && k < len(shares); k++ {
			shares[k].amount++
		}

		progressed := false
		for _, s := range shares {
			want := demand[s.idx] - alloc[s.idx]
			give := s.amount
			switch {
			case give >= want:
				alloc[s.idx] += want
				remaining -= want
				capped[s.idx] = true
				progressed = true
			case give > 0:
				alloc[s.idx] += give
				remaining -= give
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return alloc
}
