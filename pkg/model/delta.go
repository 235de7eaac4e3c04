package model

import (
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
)

// Delta is the replayable unit of change a Model can produce since a given
// timestamp and another Model can later fold back in. It is the concrete
// Go shape behind the wire protocol's "batch of stamped ops": rather than
// flatten every CRDT primitive's op type into one polymorphic envelope
// (which would need reflection to reconstruct generic types like
// Register[resourceCore] or FArray[*Rack] from a wire value), each entity
// kind contributes its own typed slice of the underlying primitives' own
// Delta output. Resources, logical groups, and claims are reported at
// field granularity since their CRDTs are flat; datacenters are reported
// as a whole (core plus every row and rack) whenever anything beneath them
// changed, because a row's racks and a rack's resources nest one
// Fractional-Index Array inside another and decomposing that nesting into
// field-level ops would not meaningfully shrink the payload for the added
// complexity. Snapshotting is just Delta(clock.Zero): every primitive's
// Delta already treats "since the beginning" as "everything there is".
type Delta struct {
	Resources     []ResourceDelta      `json:"resources,omitempty"`
	Datacenters   []DatacenterSnapshot `json:"datacenters,omitempty"`
	LogicalGroups []LogicalGroupDelta  `json:"logical_groups,omitempty"`
	Claims        []ClaimDelta         `json:"claims,omitempty"`
	Profiles      []ProfileDelta       `json:"profiles,omitempty"`
}

// ResourceDelta carries whichever of a resource's three fields changed.
type ResourceDelta struct {
	ID    string                           `json:"id"`
	Core  *crdt.RegisterOp[resourceCore]   `json:"core,omitempty"`
	Attrs []crdt.MapOp[string, string]     `json:"attrs,omitempty"`
	State *crdt.RegisterOp[ResourceState] `json:"state,omitempty"`
}

// LogicalGroupDelta carries whichever of a logical group's two fields
// changed.
type LogicalGroupDelta struct {
	ID      string                           `json:"id"`
	Core    *crdt.RegisterOp[logicalCore]    `json:"core,omitempty"`
	Members []crdt.MVMapOp[string, string]   `json:"members,omitempty"`
}

// ClaimDelta carries whichever of a claim's fields changed.
type ClaimDelta struct {
	ID         string                               `json:"id"`
	Core       *crdt.RegisterOp[claimCore]          `json:"core,omitempty"`
	Status     *crdt.RegisterOp[ClaimStatus]        `json:"status,omitempty"`
	Profiles   []crdt.ORSetOp[string]               `json:"profiles,omitempty"`
	Placements []crdt.MapOp[string, []string]       `json:"placements,omitempty"`
	AdmittedAt *crdt.RegisterOp[clock.Timestamp]    `json:"admitted_at,omitempty"`
}

// ProfileDelta carries a changed resource profile, keyed by the id
// referenced from a claim's OR-Set.
type ProfileDelta struct {
	ID      string                          `json:"id"`
	Profile crdt.RegisterOp[ResourceProfile] `json:"profile"`
}

// RackSnapshot is a full dump of one rack: its own position/lifecycle in
// the owning row's array, plus every resource-id op in its array.
type RackSnapshot struct {
	ID        string               `json:"id"`
	Pos       *crdt.Position       `json:"pos"`
	Ts        clock.Timestamp      `json:"ts"`
	Deleted   bool                 `json:"deleted"`
	Resources []crdt.FArrayOp[string] `json:"resources,omitempty"`
}

// RowSnapshot is a full dump of one row: its position/lifecycle in the
// owning datacenter's array, plus every rack beneath it.
type RowSnapshot struct {
	ID      string          `json:"id"`
	Pos     *crdt.Position  `json:"pos"`
	Ts      clock.Timestamp `json:"ts"`
	Deleted bool            `json:"deleted"`
	Racks   []RackSnapshot  `json:"racks,omitempty"`
}

// DatacenterSnapshot is a full dump of one datacenter: its core plus every
// row beneath it. Included in a Delta whenever anything about the
// datacenter — its name/location, or any row/rack/resource-slot beneath
// it — changed since the requested cutoff.
type DatacenterSnapshot struct {
	ID   string                         `json:"id"`
	Core crdt.RegisterOp[datacenterCore] `json:"core"`
	Rows []RowSnapshot                  `json:"rows,omitempty"`
}

// Empty reports whether the delta carries no operations at all.
func (d Delta) Empty() bool {
	return len(d.Resources) == 0 && len(d.Datacenters) == 0 &&
		len(d.LogicalGroups) == 0 && len(d.Claims) == 0 && len(d.Profiles) == 0
}

// Delta returns every change observable since the given timestamp, in the
// shape described on the Delta type.
func (m *Model) Delta(since clock.Timestamp) Delta {
	return Delta{
		Resources:     m.resources.delta(since),
		Datacenters:   m.datacenters.delta(since),
		LogicalGroups: m.logicalGroups.delta(since),
		Claims:        m.claims.delta(since),
		Profiles:      m.claims.profileDelta(since),
	}
}

// ApplyDelta replays a Delta produced by another Model (or by this one, in
// which case it is a no-op: every Apply underneath is itself idempotent).
func (m *Model) ApplyDelta(d Delta) {
	m.resources.applyDelta(d.Resources)
	m.datacenters.applyDelta(d.Datacenters)
	m.logicalGroups.applyDelta(d.LogicalGroups)
	m.claims.applyDelta(d.Claims)
	m.claims.applyProfileDelta(d.Profiles)
}

func (r *resources) delta(since clock.Timestamp) []ResourceDelta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ResourceDelta
	for id, e := range r.entries {
		rd := ResourceDelta{ID: id}
		changed := false
		if op, ok := e.core.Delta(since); ok {
			rd.Core = &op
			changed = true
		}
		if ops := e.attrs.Delta(since); len(ops) > 0 {
			rd.Attrs = ops
			changed = true
		}
		if op, ok := e.state.Delta(since); ok {
			rd.State = &op
			changed = true
		}
		if changed {
			out = append(out, rd)
		}
	}
	return out
}

func (r *resources) applyDelta(ds []ResourceDelta) {
	for _, rd := range ds {
		e := r.getOrCreate(rd.ID)
		if rd.Core != nil {
			e.core.Apply(*rd.Core)
		}
		for _, op := range rd.Attrs {
			e.attrs.Apply(op)
		}
		if rd.State != nil {
			e.state.Apply(*rd.State)
		}
	}
}

func (l *logicalGroups) delta(since clock.Timestamp) []LogicalGroupDelta {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []LogicalGroupDelta
	for id, e := range l.entries {
		ld := LogicalGroupDelta{ID: id}
		changed := false
		if op, ok := e.core.Delta(since); ok {
			ld.Core = &op
			changed = true
		}
		if ops := e.members.Delta(since); len(ops) > 0 {
			ld.Members = ops
			changed = true
		}
		if changed {
			out = append(out, ld)
		}
	}
	return out
}

func (l *logicalGroups) applyDelta(ds []LogicalGroupDelta) {
	for _, ld := range ds {
		e := l.getOrCreate(ld.ID)
		if ld.Core != nil {
			e.core.Apply(*ld.Core)
		}
		for _, op := range ld.Members {
			e.members.Apply(op)
		}
	}
}

func (c *claims) delta(since clock.Timestamp) []ClaimDelta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ClaimDelta
	for id, e := range c.entries {
		cd := ClaimDelta{ID: id}
		changed := false
		if op, ok := e.core.Delta(since); ok {
			cd.Core = &op
			changed = true
		}
		if op, ok := e.status.Delta(since); ok {
			cd.Status = &op
			changed = true
		}
		if ops := e.profiles.Delta(since); len(ops) > 0 {
			cd.Profiles = ops
			changed = true
		}
		if ops := e.placements.Delta(since); len(ops) > 0 {
			cd.Placements = ops
			changed = true
		}
		if op, ok := e.admittedAt.Delta(since); ok {
			cd.AdmittedAt = &op
			changed = true
		}
		if changed {
			out = append(out, cd)
		}
	}
	return out
}

func (c *claims) applyDelta(ds []ClaimDelta) {
	for _, cd := range ds {
		e := c.getOrCreate(cd.ID)
		if cd.Core != nil {
			e.core.Apply(*cd.Core)
		}
		if cd.Status != nil {
			e.status.Apply(*cd.Status)
		}
		for _, op := range cd.Profiles {
			e.profiles.Apply(op)
		}
		for _, op := range cd.Placements {
			e.placements.Apply(op)
		}
		if cd.AdmittedAt != nil {
			e.admittedAt.Apply(*cd.AdmittedAt)
		}
	}
}

func (c *claims) profileDelta(since clock.Timestamp) []ProfileDelta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ProfileDelta
	for id, reg := range c.profileDetails {
		if op, ok := reg.Delta(since); ok {
			out = append(out, ProfileDelta{ID: id, Profile: op})
		}
	}
	return out
}

func (c *claims) applyProfileDelta(ds []ProfileDelta) {
	for _, pd := range ds {
		c.profileReg(pd.ID).Apply(pd.Profile)
	}
}

func (d *datacenters) delta(since clock.Timestamp) []DatacenterSnapshot {
	d.mu.RLock()
	ids := make([]string, 0, len(d.entries))
	entries := make(map[string]*datacenterEntry, len(d.entries))
	for id, e := range d.entries {
		ids = append(ids, id)
		entries[id] = e
	}
	d.mu.RUnlock()

	var out []DatacenterSnapshot
	for _, id := range ids {
		e := entries[id]
		coreOp, coreOK := e.core.Delta(since)
		rowOps := e.rows.Delta(since)
		nestedChanged := false
		allRows := e.rows.Delta(clock.Zero)
		rows := make([]RowSnapshot, 0, len(allRows))
		for _, full := range allRows {
			if full.Deleted || full.Value == nil {
				rows = append(rows, RowSnapshot{ID: full.ID, Pos: full.Pos, Ts: full.Ts, Deleted: true})
				continue
			}
			allRacks := full.Value.racks.Delta(clock.Zero)
			racks := make([]RackSnapshot, 0, len(allRacks))
			for _, rfull := range allRacks {
				if rfull.Deleted || rfull.Value == nil {
					racks = append(racks, RackSnapshot{ID: rfull.ID, Pos: rfull.Pos, Ts: rfull.Ts, Deleted: true})
					continue
				}
				if since.Less(rfull.Ts) || len(rfull.Value.resources.Delta(since)) > 0 {
					nestedChanged = true
				}
				racks = append(racks, RackSnapshot{
					ID:        rfull.ID,
					Pos:       rfull.Pos,
					Ts:        rfull.Ts,
					Deleted:   rfull.Deleted,
					Resources: rfull.Value.resources.Delta(clock.Zero),
				})
			}
			rows = append(rows, RowSnapshot{ID: full.ID, Pos: full.Pos, Ts: full.Ts, Deleted: full.Deleted, Racks: racks})
		}
		if coreOK || len(rowOps) > 0 || nestedChanged {
			snap := DatacenterSnapshot{ID: id, Rows: rows}
			if coreOK {
				snap.Core = coreOp
			} else {
				// No core change since the cutoff, but something nested
				// did: still carry the current core so a from-scratch
				// Model can materialize the datacenter after ApplyDelta.
				if v, ts, ok := e.core.Value(); ok {
					snap.Core = crdt.RegisterOp[datacenterCore]{Value: v, Ts: ts}
				}
			}
			out = append(out, snap)
		}
	}
	return out
}

// applyDelta reconstructs a throwaway row array from each snapshot and
// folds it in with mergeRows/mergeRacks rather than replacing e.rows
// wholesale: a whole-value Apply on a matched row id would silently
// discard any rack the local side inserted that the remote snapshot
// predates.
func (d *datacenters) applyDelta(snaps []DatacenterSnapshot) {
	for _, snap := range snaps {
		e := d.getOrCreate(snap.ID)
		e.core.Apply(snap.Core)

		remoteRows := crdt.NewFArray[*Row]()
		for _, rowSnap := range snap.Rows {
			if rowSnap.Deleted {
				remoteRows.Apply(crdt.FArrayOp[*Row]{ID: rowSnap.ID, Pos: rowSnap.Pos, Ts: rowSnap.Ts, Deleted: true})
				continue
			}
			row := &Row{id: rowSnap.ID, racks: crdt.NewFArray[*Rack]()}
			for _, rackSnap := range rowSnap.Racks {
				if rackSnap.Deleted {
					row.racks.Apply(crdt.FArrayOp[*Rack]{ID: rackSnap.ID, Pos: rackSnap.Pos, Ts: rackSnap.Ts, Deleted: true})
					continue
				}
				rack := &Rack{id: rackSnap.ID, resources: crdt.NewFArray[string]()}
				for _, resOp := range rackSnap.Resources {
					rack.resources.Apply(resOp)
				}
				row.racks.Apply(crdt.FArrayOp[*Rack]{ID: rackSnap.ID, Pos: rackSnap.Pos, Value: rack, Ts: rackSnap.Ts})
			}
			remoteRows.Apply(crdt.FArrayOp[*Row]{ID: rowSnap.ID, Pos: rowSnap.Pos, Value: row, Ts: rowSnap.Ts})
		}
		mergeRows(e.rows, remoteRows)
	}
}
