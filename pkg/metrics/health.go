package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/witlox/horao/pkg/model"
)

// Probe reports whether one subsystem can currently do its job: the
// store probe pings the sink, the gossip probe checks peer connectivity,
// the scheduler probe checks reconciliation recency. Probes run when an
// endpoint is served, so the answer reflects state at request time
// rather than the last time a subsystem remembered to push an update.
type Probe func() error

type probeEntry struct {
	probe    Probe
	critical bool
}

// Health backs a peer's /health, /ready, and /live endpoints. /health
// runs every probe and summarizes the model the peer currently serves;
// /ready runs only the critical probes (the ones whose failure means the
// peer cannot usefully participate in the cluster); /live answers as
// long as the process can serve HTTP at all.
type Health struct {
	mu      sync.RWMutex
	model   *model.Model
	version string
	started time.Time
	probes  map[string]probeEntry
}

// NewHealth builds the health surface over the peer's model.
func NewHealth(m *model.Model, version string) *Health {
	return &Health{
		model:   m,
		version: version,
		started: time.Now(),
		probes:  make(map[string]probeEntry),
	}
}

// Register installs a named probe. Critical probes gate /ready;
// non-critical ones only color /health. Call during startup wiring,
// before the HTTP server comes up.
func (h *Health) Register(name string, critical bool, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probeEntry{probe: p, critical: critical}
}

type modelSummary struct {
	Resources   int `json:"resources"`
	Datacenters int `json:"datacenters"`
	Claims      int `json:"claims"`
	Placed      int `json:"claims_placed"`
}

type healthReport struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime"`
	Probes  map[string]string `json:"probes"`
	Model   modelSummary      `json:"model"`
}

func (h *Health) summarize() modelSummary {
	s := modelSummary{
		Resources:   len(h.model.ListResources()),
		Datacenters: len(h.model.ListDatacenters()),
	}
	for _, c := range h.model.ListClaims() {
		s.Claims++
		if c.Status == model.ClaimStatusPlaced {
			s.Placed++
		}
	}
	return s
}

// run executes the selected probes and reports per-probe outcomes plus
// whether all of them passed.
func (h *Health) run(criticalOnly bool) (map[string]string, bool) {
	h.mu.RLock()
	selected := make(map[string]Probe, len(h.probes))
	for name, e := range h.probes {
		if criticalOnly && !e.critical {
			continue
		}
		selected[name] = e.probe
	}
	h.mu.RUnlock()

	results := make(map[string]string, len(selected))
	ok := true
	for name, p := range selected {
		if err := p(); err != nil {
			results[name] = err.Error()
			ok = false
		} else {
			results[name] = "ok"
		}
	}
	return results, ok
}

// Handler serves /health: every probe plus the model summary.
func (h *Health) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		probes, ok := h.run(false)
		status, code := "healthy", http.StatusOK
		if !ok {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		writeJSON(w, code, healthReport{
			Status:  status,
			Version: h.version,
			Uptime:  time.Since(h.started).String(),
			Probes:  probes,
			Model:   h.summarize(),
		})
	}
}

// ReadyHandler serves /ready: critical probes only, no model summary —
// readiness is about whether the peer can take traffic, not how much
// state it holds.
func (h *Health) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		probes, ok := h.run(true)
		status, code := "ready", http.StatusOK
		if !ok {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status": status,
			"probes": probes,
		})
	}
}

// LiveHandler serves /live: 200 whenever the process is up.
func (h *Health) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(h.started).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
