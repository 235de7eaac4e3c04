package model

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
)

// ResourceKind is the allowed set of resource dimensions.
type ResourceKind string

const (
	ResourceKindCompute ResourceKind = "compute"
	ResourceKindNetwork ResourceKind = "network"
	ResourceKindStorage ResourceKind = "storage"
)

// capacitySchema names the capacity vector dimensions a kind accepts.
// upsert_resource rejects a capacity vector whose key set isn't exactly
// one of these.
var capacitySchema = map[ResourceKind]map[string]bool{
	ResourceKindCompute: {"cpu": true, "memory": true},
	ResourceKindNetwork: {"bandwidth": true},
	ResourceKindStorage: {"iops": true, "bytes": true},
}

// ResourceState is the LWW-Register value tracking a resource's
// availability.
type ResourceState string

const (
	ResourceStateActive   ResourceState = "active"
	ResourceStateDraining ResourceState = "draining"
	ResourceStateOffline  ResourceState = "offline"
	// ResourceStateDegraded marks a resource a controller adapter's
	// placement_hook rejected; it is excluded from placement (see
	// pkg/scheduler's matches) until the adapter's cool-off window
	// elapses and the controller restores it to active.
	ResourceStateDegraded ResourceState = "degraded"
)

// CapacityVector is a sparse map of dimension name to quantity (cpu,
// memory, bandwidth, iops, bytes, ...).
type CapacityVector map[string]float64

// resourceCore is the immutable-at-create part of a resource: its kind
// and capacity. Re-upserting the same id with a different core replaces
// it wholesale (last writer wins), mirroring how a create operation is
// itself just an LWW-Register set from "absent".
type resourceCore struct {
	Kind     ResourceKind
	Capacity CapacityVector
}

// resourceEntry bundles the three independently-replicated CRDTs backing
// one resource: its core (kind + capacity), its free-form attributes, and
// its availability state.
type resourceEntry struct {
	core  *crdt.Register[resourceCore]
	attrs *crdt.Map[string, string]
	state *crdt.Register[ResourceState]
}

func newResourceEntry() *resourceEntry {
	return &resourceEntry{
		core:  crdt.NewRegister[resourceCore](),
		attrs: crdt.NewMap[string, string](),
		state: crdt.NewRegister[ResourceState](),
	}
}

// Resource is the materialized, read-only view of a resource entry.
type Resource struct {
	ID         string
	Kind       ResourceKind
	Capacity   CapacityVector
	Attributes map[string]string
	State      ResourceState
}

// resources holds every resource entry, keyed by id. It is the "single
// id-keyed flat map" the resource model composes everything else over;
// callers reach a resource only by id, never by walking a rack or a
// logical group.
type resources struct {
	mu      sync.RWMutex
	entries map[string]*resourceEntry
}

func newResources() *resources {
	return &resources{entries: make(map[string]*resourceEntry)}
}

func (r *resources) getOrCreate(id string) *resourceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = newResourceEntry()
		r.entries[id] = e
	}
	return e
}

func (r *resources) get(id string) (*resourceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func validCapacity(kind ResourceKind, capacity CapacityVector) bool {
	schema, ok := capacitySchema[kind]
	if !ok {
		return false
	}
	if len(capacity) != len(schema) {
		return false
	}
	for dim := range capacity {
		if !schema[dim] {
			return false
		}
	}
	return true
}

func capacityDims(capacity CapacityVector) []string {
	dims := make([]string, 0, len(capacity))
	for d := range capacity {
		dims = append(dims, d)
	}
	return dims
}

// materialize reads e into a plain Resource, returning ok=false if the
// resource's core was never created (or only tombstoned state exists).
func materialize(id string, e *resourceEntry) (Resource, bool) {
	core, _, ok := e.core.Value()
	if !ok {
		return Resource{}, false
	}
	state, _, _ := e.state.Value()
	return Resource{
		ID:         id,
		Kind:       core.Kind,
		Capacity:   core.Capacity,
		Attributes: e.attrs.Value(),
		State:      state,
	}, true
}

// UpsertResource creates or replaces a resource's kind, capacity, and
// attributes. It fails with InvalidKindError if kind isn't one of
// compute/network/storage, and CapacityShapeError if the capacity
// vector's dimensions don't match the kind's schema.
func (m *Model) UpsertResource(id string, kind ResourceKind, capacity CapacityVector, attrs map[string]string, ts clock.Timestamp) error {
	if _, ok := capacitySchema[kind]; !ok {
		return &InvalidKindError{Kind: kind}
	}
	if !validCapacity(kind, capacity) {
		return &CapacityShapeError{Kind: kind, Dimensions: capacityDims(capacity)}
	}
	e := m.resources.getOrCreate(id)
	e.core.Apply(crdt.RegisterOp[resourceCore]{Value: resourceCore{Kind: kind, Capacity: capacity}, Ts: ts})
	for k, v := range attrs {
		e.attrs.Set(k, v, ts)
	}
	return nil
}

// SetResourceState transitions a resource's availability state. It fails
// with UnknownResourceError if no create is observable for id.
func (m *Model) SetResourceState(id string, state ResourceState, ts clock.Timestamp) error {
	e, ok := m.resources.get(id)
	if !ok {
		return &UnknownResourceError{ID: id}
	}
	if _, _, ok := e.core.Value(); !ok {
		return &UnknownResourceError{ID: id}
	}
	e.state.Apply(crdt.RegisterOp[ResourceState]{Value: state, Ts: ts})
	return nil
}

// GetResource returns the materialized view of a resource by id.
func (m *Model) GetResource(id string) (Resource, bool) {
	e, ok := m.resources.get(id)
	if !ok {
		return Resource{}, false
	}
	return materialize(id, e)
}

// ListResources returns every resource whose create is currently
// observable, in no particular order.
func (m *Model) ListResources() []Resource {
	m.resources.mu.RLock()
	ids := make([]string, 0, len(m.resources.entries))
	entries := make(map[string]*resourceEntry, len(m.resources.entries))
	for id, e := range m.resources.entries {
		ids = append(ids, id)
		entries[id] = e
	}
	m.resources.mu.RUnlock()

	out := make([]Resource, 0, len(ids))
	for _, id := range ids {
		if r, ok := materialize(id, entries[id]); ok {
			out = append(out, r)
		}
	}
	return out
}
