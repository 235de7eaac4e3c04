package model

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
)

type logicalCore struct {
	Name string
}

type logicalEntry struct {
	core    *crdt.Register[logicalCore]
	members *crdt.MVMap[string, string]
}

func newLogicalEntry() *logicalEntry {
	return &logicalEntry{
		core:    crdt.NewRegister[logicalCore](),
		members: crdt.NewMVMap[string, string](),
	}
}

// LogicalInfrastructure is the materialized view of a logical grouping:
// its name, and its slot-name -> resource-id(s) membership. A slot can
// carry more than one resource id when concurrent assignments haven't
// been reconciled yet.
type LogicalInfrastructure struct {
	ID      string
	Name    string
	Members map[string][]string
}

type logicalGroups struct {
	mu      sync.RWMutex
	entries map[string]*logicalEntry
}

func newLogicalGroups() *logicalGroups {
	return &logicalGroups{entries: make(map[string]*logicalEntry)}
}

func (l *logicalGroups) getOrCreate(id string) *logicalEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = newLogicalEntry()
		l.entries[id] = e
	}
	return e
}

func (l *logicalGroups) get(id string) (*logicalEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	return e, ok
}

// CreateLogicalGroup registers a logical infrastructure grouping's name.
func (m *Model) CreateLogicalGroup(id, name string, ts clock.Timestamp) {
	e := m.logicalGroups.getOrCreate(id)
	e.core.Apply(crdt.RegisterOp[logicalCore]{Value: logicalCore{Name: name}, Ts: ts})
}

// AssignLogicalSlot assigns resourceID to slot within logical group id.
// Fails with UnknownLogicalGroupError if id has no observable create.
func (m *Model) AssignLogicalSlot(id, slot, resourceID string, ts clock.Timestamp) error {
	e, ok := m.logicalGroups.get(id)
	if !ok {
		return &UnknownLogicalGroupError{ID: id}
	}
	e.members.Set(slot, resourceID, ts)
	return nil
}

// UnassignLogicalSlot removes every sibling currently assigned to slot
// within logical group id.
func (m *Model) UnassignLogicalSlot(id, slot string, ts clock.Timestamp) error {
	e, ok := m.logicalGroups.get(id)
	if !ok {
		return &UnknownLogicalGroupError{ID: id}
	}
	e.members.Remove(slot, ts)
	return nil
}

// GetLogicalGroup returns the materialized view of a logical
// infrastructure grouping by id.
func (m *Model) GetLogicalGroup(id string) (LogicalInfrastructure, bool) {
	e, ok := m.logicalGroups.get(id)
	if !ok {
		return LogicalInfrastructure{}, false
	}
	core, _, ok := e.core.Value()
	if !ok {
		return LogicalInfrastructure{}, false
	}
	return LogicalInfrastructure{ID: id, Name: core.Name, Members: e.members.Value()}, true
}
