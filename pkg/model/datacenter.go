package model

import (
	"sync"

	"github.com/google/uuid"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
)

// datacenterCore is the immutable-at-create name/location of a
// datacenter.
type datacenterCore struct {
	Name     string
	Location string
}

// Rack holds an ordered sequence of resource ids: the resources
// physically mounted in it. Only the id is stored — the resource itself
// still lives in the single flat resources map.
type Rack struct {
	id        string
	resources *crdt.FArray[string]
}

// Row holds an ordered sequence of racks.
type Row struct {
	id    string
	racks *crdt.FArray[*Rack]
}

type datacenterEntry struct {
	core *crdt.Register[datacenterCore]
	rows *crdt.FArray[*Row]
}

func newDatacenterEntry() *datacenterEntry {
	return &datacenterEntry{
		core: crdt.NewRegister[datacenterCore](),
		rows: crdt.NewFArray[*Row](),
	}
}

// Datacenter is the materialized, read-only view of a datacenter: its
// name, location, and physical layout as a slice of rows of racks of
// resource ids.
type Datacenter struct {
	ID       string
	Name     string
	Location string
	Rows     [][][]string // [row][rack][resource id]
}

type datacenters struct {
	mu      sync.RWMutex
	entries map[string]*datacenterEntry
}

func newDatacenters() *datacenters {
	return &datacenters{entries: make(map[string]*datacenterEntry)}
}

func (d *datacenters) getOrCreate(id string) *datacenterEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		e = newDatacenterEntry()
		d.entries[id] = e
	}
	return e
}

func (d *datacenters) get(id string) (*datacenterEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	return e, ok
}

// CreateDatacenter registers a datacenter's name and location. Calling it
// again for the same id with a later timestamp replaces the name/location
// (last writer wins); existing rows are untouched.
func (m *Model) CreateDatacenter(id, name, location string, ts clock.Timestamp) {
	e := m.datacenters.getOrCreate(id)
	e.core.Apply(crdt.RegisterOp[datacenterCore]{Value: datacenterCore{Name: name, Location: location}, Ts: ts})
}

// ensureRow appends new, empty rows until the array has at least n+1 live
// rows, returning the live row list after extension.
func ensureRow(rows *crdt.FArray[*Row], n int, ts clock.Timestamp) []*Row {
	live := rows.Value()
	for len(live) <= n {
		after := ""
		if len(live) > 0 {
			after = live[len(live)-1].id
		}
		row := &Row{id: uuid.NewString(), racks: crdt.NewFArray[*Rack]()}
		rows.Insert(row.id, after, row, nil, ts)
		live = rows.Value()
	}
	return live
}

func ensureRack(racks *crdt.FArray[*Rack], n int, ts clock.Timestamp) []*Rack {
	live := racks.Value()
	for len(live) <= n {
		after := ""
		if len(live) > 0 {
			after = live[len(live)-1].id
		}
		rack := &Rack{id: uuid.NewString(), resources: crdt.NewFArray[string]()}
		racks.Insert(rack.id, after, rack, nil, ts)
		live = racks.Value()
	}
	return live
}

// AttachToRack inserts resourceID into the fractional-index array at
// datacenterID's (rowIdx, rackIdx), at the requested positionHint if one
// is given; a taken hint falls back to the mediant to the right. Rows and
// racks are auto-vivified up to the requested index if they don't exist
// yet. Fails with UnknownDatacenterError if datacenterID has no
// observable create.
func (m *Model) AttachToRack(resourceID, datacenterID string, rowIdx, rackIdx int, positionHint *crdt.Position, ts clock.Timestamp) error {
	dc, ok := m.datacenters.get(datacenterID)
	if !ok {
		return &UnknownDatacenterError{ID: datacenterID}
	}
	if rowIdx < 0 || rackIdx < 0 {
		return &IndexOutOfRangeError{RowIdx: rowIdx, RackIdx: rackIdx}
	}
	rows := ensureRow(dc.rows, rowIdx, ts)
	row := rows[rowIdx]
	racks := ensureRack(row.racks, rackIdx, ts)
	rack := racks[rackIdx]

	live := rack.resources.Value()
	after := ""
	if len(live) > 0 {
		after = live[len(live)-1]
	}
	rack.resources.Insert(resourceID, after, resourceID, positionHint, ts)
	return nil
}

// ListDatacenters returns the materialized view of every known datacenter.
func (m *Model) ListDatacenters() []Datacenter {
	m.datacenters.mu.RLock()
	ids := make([]string, 0, len(m.datacenters.entries))
	for id := range m.datacenters.entries {
		ids = append(ids, id)
	}
	m.datacenters.mu.RUnlock()

	out := make([]Datacenter, 0, len(ids))
	for _, id := range ids {
		if dc, ok := m.GetDatacenter(id); ok {
			out = append(out, dc)
		}
	}
	return out
}

// GetDatacenter returns the materialized view of a datacenter by id.
func (m *Model) GetDatacenter(id string) (Datacenter, bool) {
	e, ok := m.datacenters.get(id)
	if !ok {
		return Datacenter{}, false
	}
	core, _, ok := e.core.Value()
	if !ok {
		return Datacenter{}, false
	}
	rows := e.rows.Value()
	out := Datacenter{ID: id, Name: core.Name, Location: core.Location, Rows: make([][][]string, 0, len(rows))}
	for _, row := range rows {
		racks := row.racks.Value()
		rowOut := make([][]string, 0, len(racks))
		for _, rack := range racks {
			rowOut = append(rowOut, rack.resources.Value())
		}
		out.Rows = append(out.Rows, rowOut)
	}
	return out, true
}
