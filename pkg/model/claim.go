package model

import (
	"sync"

	"github.com/google/uuid"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
)

// ClaimKind distinguishes ordinary tenant claims from maintenance events.
// A maintenance event is scheduled like any other claim but carries a
// pseudo-tenant that does not consume fair-share and whose placements
// mark resources unavailable to everyone else.
type ClaimKind string

const (
	ClaimKindTenant      ClaimKind = "tenant"
	ClaimKindMaintenance ClaimKind = "maintenance"
)

// ClaimStatus is the claim state machine's current state.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusAdmitted ClaimStatus = "admitted"
	ClaimStatusPlaced   ClaimStatus = "placed"
	ClaimStatusRejected ClaimStatus = "rejected"
	ClaimStatusExpired  ClaimStatus = "expired"
)

// Window is a half-open time window in epoch milliseconds.
type Window struct {
	StartMs int64
	EndMs   int64
}

// Overlaps reports whether w and other share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.StartMs < other.EndMs && other.StartMs < w.EndMs
}

// ResourceProfile describes a portion of a claim's ask: a kind, a
// quantity, required attribute matches, optional soft preferences, and a
// duration. Profiles are stored by id in a flat map, same as resources,
// and referenced from a claim's OR-Set by that id.
type ResourceProfile struct {
	ID            string
	Kind          ResourceKind
	Quantity      int
	RequiredAttrs map[string]string
	Preferences   map[string]string
	Duration      int64 // milliseconds
}

type claimCore struct {
	Tenant   string
	Kind     ClaimKind
	Priority int
	Window   Window
}

type claimEntry struct {
	core       *crdt.Register[claimCore]
	status     *crdt.Register[ClaimStatus]
	profiles   *crdt.ORSet[string]            // profile ids
	placements *crdt.Map[string, []string]    // profile id -> resource ids
	admittedAt *crdt.Register[clock.Timestamp] // stamps the admission decision for §4.5's conflict tiebreak
}

func newClaimEntry() *claimEntry {
	return &claimEntry{
		core:       crdt.NewRegister[claimCore](),
		status:     crdt.NewRegister[ClaimStatus](),
		profiles:   crdt.NewORSet[string](),
		placements: crdt.NewMap[string, []string](),
		admittedAt: crdt.NewRegister[clock.Timestamp](),
	}
}

// Claim is the materialized, read-only view of a reservation claim.
type Claim struct {
	ID         string
	Tenant     string
	Kind       ClaimKind
	Priority   int
	Window     Window
	Status     ClaimStatus
	ProfileIDs []string
	Placements map[string][]string
}

type claims struct {
	mu              sync.RWMutex
	entries         map[string]*claimEntry
	profileDetails  map[string]*crdt.Register[ResourceProfile]
}

func newClaims() *claims {
	return &claims{
		entries:        make(map[string]*claimEntry),
		profileDetails: make(map[string]*crdt.Register[ResourceProfile]),
	}
}

func (c *claims) getOrCreate(id string) *claimEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		e = newClaimEntry()
		c.entries[id] = e
	}
	return e
}

func (c *claims) get(id string) (*claimEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *claims) profileReg(id string) *crdt.Register[ResourceProfile] {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.profileDetails[id]
	if !ok {
		r = crdt.NewRegister[ResourceProfile]()
		c.profileDetails[id] = r
	}
	return r
}

// ClaimRequest is the caller-facing shape for SubmitClaim: a claim id,
// tenant, kind, priority, window, and the profiles it asks for (profile
// IDs are assigned here if empty).
type ClaimRequest struct {
	ID       string
	Tenant   string
	Kind     ClaimKind
	Priority int
	Window   Window
	Profiles []ResourceProfile
}

// SubmitClaim records a claim's core fields and its requested profiles,
// and sets its status to pending. An empty claim id is assigned here,
// same as empty profile ids. Submitting the same id again replaces
// the core fields (last writer wins) and adds any new profiles; existing
// profiles are untouched unless WithdrawClaim already removed them.
func (m *Model) SubmitClaim(req ClaimRequest, ts clock.Timestamp) Claim {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	e := m.claims.getOrCreate(req.ID)
	e.core.Apply(crdt.RegisterOp[claimCore]{
		Value: claimCore{Tenant: req.Tenant, Kind: req.Kind, Priority: req.Priority, Window: req.Window},
		Ts:    ts,
	})
	e.status.Apply(crdt.RegisterOp[ClaimStatus]{Value: ClaimStatusPending, Ts: ts})
	for _, p := range req.Profiles {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		e.profiles.Add(p.ID, uuid.NewString(), ts)
		m.claims.profileReg(p.ID).Apply(crdt.RegisterOp[ResourceProfile]{Value: p, Ts: ts})
	}
	claim, _ := m.GetClaim(req.ID)
	return claim
}

// WithdrawClaim removes every currently-observed profile from a claim and
// marks it rejected. Fails with UnknownClaimError if id has no observable
// submit.
func (m *Model) WithdrawClaim(id string, ts clock.Timestamp) error {
	e, ok := m.claims.get(id)
	if !ok {
		return &UnknownClaimError{ID: id}
	}
	if _, _, ok := e.core.Value(); !ok {
		return &UnknownClaimError{ID: id}
	}
	for _, pid := range e.profiles.Values(nil) {
		e.profiles.Remove(pid, ts)
	}
	e.status.Apply(crdt.RegisterOp[ClaimStatus]{Value: ClaimStatusRejected, Ts: ts})
	return nil
}

// SetClaimStatus transitions a claim's status. Used by the scheduler; not
// validated against the state machine here (pkg/scheduler owns legal
// transitions), only that the claim exists.
func (m *Model) SetClaimStatus(id string, status ClaimStatus, ts clock.Timestamp) error {
	e, ok := m.claims.get(id)
	if !ok {
		return &UnknownClaimError{ID: id}
	}
	e.status.Apply(crdt.RegisterOp[ClaimStatus]{Value: status, Ts: ts})
	return nil
}

// SetAdmittedAt stamps the timestamp at which a claim was admitted, used
// as the tiebreak key when two peers admit conflicting claims
// concurrently.
func (m *Model) SetAdmittedAt(id string, ts clock.Timestamp) {
	e := m.claims.getOrCreate(id)
	e.admittedAt.Apply(crdt.RegisterOp[clock.Timestamp]{Value: ts, Ts: ts})
}

// AdmittedAt returns the timestamp a claim was admitted at, if any.
func (m *Model) AdmittedAt(id string) (clock.Timestamp, bool) {
	e, ok := m.claims.get(id)
	if !ok {
		return clock.Timestamp{}, false
	}
	v, _, ok := e.admittedAt.Value()
	return v, ok
}

// SetPlacement records the resource ids placed for a claim's profile.
func (m *Model) SetPlacement(claimID, profileID string, resourceIDs []string, ts clock.Timestamp) error {
	e, ok := m.claims.get(claimID)
	if !ok {
		return &UnknownClaimError{ID: claimID}
	}
	e.placements.Set(profileID, resourceIDs, ts)
	return nil
}

// ClearPlacements drops every placement recorded for a claim, used when a
// claim reverts from placed back to admitted or pending.
func (m *Model) ClearPlacements(claimID string, ts clock.Timestamp) error {
	e, ok := m.claims.get(claimID)
	if !ok {
		return &UnknownClaimError{ID: claimID}
	}
	for profileID := range e.placements.Value() {
		e.placements.Delete(profileID, ts)
	}
	return nil
}

// GetProfile returns a profile's materialized details by id.
func (m *Model) GetProfile(id string) (ResourceProfile, bool) {
	m.claims.mu.RLock()
	reg, exists := m.claims.profileDetails[id]
	m.claims.mu.RUnlock()
	if !exists {
		return ResourceProfile{}, false
	}
	v, _, set := reg.Value()
	return v, set
}

// GetClaim returns the materialized view of a claim by id.
func (m *Model) GetClaim(id string) (Claim, bool) {
	e, ok := m.claims.get(id)
	if !ok {
		return Claim{}, false
	}
	core, _, ok := e.core.Value()
	if !ok {
		return Claim{}, false
	}
	status, _, _ := e.status.Value()
	return Claim{
		ID:         id,
		Tenant:     core.Tenant,
		Kind:       core.Kind,
		Priority:   core.Priority,
		Window:     core.Window,
		Status:     status,
		ProfileIDs: e.profiles.Values(nil),
		Placements: e.placements.Value(),
	}, true
}

// ListClaims returns every claim whose submit is currently observable.
func (m *Model) ListClaims() []Claim {
	m.claims.mu.RLock()
	ids := make([]string, 0, len(m.claims.entries))
	for id := range m.claims.entries {
		ids = append(ids, id)
	}
	m.claims.mu.RUnlock()

	out := make([]Claim, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.GetClaim(id); ok {
			out = append(out, c)
		}
	}
	return out
}
