package model

import (
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
)

// Model is the merged logical infrastructure: every resource, datacenter,
// logical grouping, and claim a peer currently knows about. It is the
// single object the fair-share scheduler reads from and the peer sync
// engine merges remote deltas into.
type Model struct {
	resources     *resources
	datacenters   *datacenters
	logicalGroups *logicalGroups
	claims        *claims
}

// New returns an empty Model.
func New() *Model {
	return &Model{
		resources:     newResources(),
		datacenters:   newDatacenters(),
		logicalGroups: newLogicalGroups(),
		claims:        newClaims(),
	}
}

// Merge folds another Model's state into this one, entity by entity, key
// by key, by delegating to each CRDT's own Merge. Commutative,
// associative, and idempotent, since it's composed entirely of
// operations with those properties.
func (m *Model) Merge(other *Model) {
	other.resources.mu.RLock()
	otherResources := make(map[string]*resourceEntry, len(other.resources.entries))
	for id, e := range other.resources.entries {
		otherResources[id] = e
	}
	other.resources.mu.RUnlock()
	for id, re := range otherResources {
		local := m.resources.getOrCreate(id)
		local.core.Merge(re.core)
		local.attrs.Merge(re.attrs)
		local.state.Merge(re.state)
	}

	other.datacenters.mu.RLock()
	otherDCs := make(map[string]*datacenterEntry, len(other.datacenters.entries))
	for id, e := range other.datacenters.entries {
		otherDCs[id] = e
	}
	other.datacenters.mu.RUnlock()
	for id, de := range otherDCs {
		local := m.datacenters.getOrCreate(id)
		local.core.Merge(de.core)
		mergeRows(local.rows, de.rows)
	}

	other.logicalGroups.mu.RLock()
	otherGroups := make(map[string]*logicalEntry, len(other.logicalGroups.entries))
	for id, e := range other.logicalGroups.entries {
		otherGroups[id] = e
	}
	other.logicalGroups.mu.RUnlock()
	for id, ge := range otherGroups {
		local := m.logicalGroups.getOrCreate(id)
		local.core.Merge(ge.core)
		local.members.Merge(ge.members)
	}

	other.claims.mu.RLock()
	otherClaims := make(map[string]*claimEntry, len(other.claims.entries))
	for id, e := range other.claims.entries {
		otherClaims[id] = e
	}
	otherProfiles := make(map[string]*crdt.Register[ResourceProfile], len(other.claims.profileDetails))
	for id, r := range other.claims.profileDetails {
		otherProfiles[id] = r
	}
	other.claims.mu.RUnlock()
	for id, ce := range otherClaims {
		local := m.claims.getOrCreate(id)
		local.core.Merge(ce.core)
		local.status.Merge(ce.status)
		local.profiles.Merge(ce.profiles)
		local.placements.Merge(ce.placements)
		local.admittedAt.Merge(ce.admittedAt)
	}
	for id, pr := range otherProfiles {
		m.claims.profileReg(id).Merge(pr)
	}
}

// mergeRows folds a remote row array into a local one. Rows carry nested
// CRDT state (their racks), so a plain FArray-level merge would silently
// drop one side's nested content whenever the top-level LWW pick went the
// other way; instead, a row present on both sides has its racks merged
// recursively by id, and a row only the remote side has is brought in
// whole via Apply, which preserves its position and timestamp exactly.
func mergeRows(local, remote *crdt.FArray[*Row]) {
	localByID := make(map[string]*Row)
	for _, r := range local.Value() {
		localByID[r.id] = r
	}
	for _, op := range remote.Delta(clock.Zero) {
		if op.Deleted {
			local.Apply(op)
			continue
		}
		if lr, ok := localByID[op.ID]; ok {
			mergeRacks(lr.racks, op.Value.racks)
			continue
		}
		local.Apply(op)
	}
}

// mergeRacks is mergeRows' counterpart one level down: a rack's resource
// list (crdt.FArray[string]) has no nested CRDT state, so once two racks
// are matched by id their resource lists merge safely via the plain
// FArray merge.
func mergeRacks(local, remote *crdt.FArray[*Rack]) {
	localByID := make(map[string]*Rack)
	for _, r := range local.Value() {
		localByID[r.id] = r
	}
	for _, op := range remote.Delta(clock.Zero) {
		if op.Deleted {
			local.Apply(op)
			continue
		}
		if lr, ok := localByID[op.ID]; ok {
			lr.resources.Merge(op.Value.resources)
			continue
		}
		local.Apply(op)
	}
}
