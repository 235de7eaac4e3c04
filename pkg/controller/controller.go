package controller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/log"
	"github.com/witlox/horao/pkg/metrics"
	"github.com/witlox/horao/pkg/model"
)

// Adapter is the provider-side contract a controller implementation
// fulfills. Adapters run in the same process as the core; no wire
// format is mandated.
type Adapter interface {
	// Name uniquely identifies this adapter among those registered with
	// a Controller.
	Name() string
	// DatacenterID is the datacenter this adapter's resources belong to.
	DatacenterID() string
	// PullInterval is the cadence Controller runs Pull on.
	PullInterval() time.Duration
	// Pull fetches the adapter's current view of its resource slice.
	Pull(ctx context.Context) ([]model.Resource, error)
	// PlacementHook fires when a claim enters placed; every registered
	// adapter's hook is called, whether or not it owns any of the
	// placed resources. Returning an error reverts the claim to
	// admitted and degrades the resources in placements.
	PlacementHook(ctx context.Context, claim model.Claim, placements map[string][]string) error
}

// Controller runs every registered Adapter's pull cadence and mediates
// its placement acknowledgements against the shared model.
type Controller struct {
	model *model.Model
	clock *clock.Clock
	logger zerolog.Logger

	graceInterval int
	coolOff       time.Duration

	mu       sync.Mutex
	adapters map[string]Adapter
	owned    map[string]map[string]bool // adapter name -> resource id -> currently owned
	misses   map[string]map[string]int  // adapter name -> resource id -> consecutive missed pushes
	degraded *coolOffTracker

	stopChs map[string]chan struct{}
	wg      sync.WaitGroup
}

// NewController builds a controller. graceInterval is the number of
// consecutive inventory pushes a resource may be absent from before it
// is tombstoned; coolOff is how long a placement_hook failure degrades
// the resources it touched.
func NewController(m *model.Model, c *clock.Clock, graceInterval int, coolOff time.Duration) *Controller {
	if graceInterval <= 0 {
		graceInterval = 1
	}
	return &Controller{
		model:         m,
		clock:         c,
		logger:        log.WithComponent("controller"),
		graceInterval: graceInterval,
		coolOff:       coolOff,
		adapters:      make(map[string]Adapter),
		owned:         make(map[string]map[string]bool),
		misses:        make(map[string]map[string]int),
		degraded:      newCoolOffTracker(),
		stopChs:       make(map[string]chan struct{}),
	}
}

// Register adds an adapter. Call before Start; adapters registered
// after Start are not picked up until the next Start.
func (c *Controller) Register(a Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[a.Name()] = a
	c.owned[a.Name()] = make(map[string]bool)
	c.misses[a.Name()] = make(map[string]int)
}

// Start launches one pull loop per registered adapter plus one cool-off
// sweep loop, each on its own goroutine.
func (c *Controller) Start() {
	c.mu.Lock()
	adapters := make([]Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		adapters = append(adapters, a)
	}
	c.mu.Unlock()

	for _, a := range adapters {
		stop := make(chan struct{})
		c.mu.Lock()
		c.stopChs[a.Name()] = stop
		c.mu.Unlock()

		c.wg.Add(1)
		go c.pullLoop(a, stop)
	}

	c.wg.Add(1)
	cooldownStop := make(chan struct{})
	c.mu.Lock()
	c.stopChs["_cooldown"] = cooldownStop
	c.mu.Unlock()
	go c.cooldownLoop(cooldownStop)
}

// Stop halts every pull loop and the cool-off sweep and waits for them
// to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	chans := make([]chan struct{}, 0, len(c.stopChs))
	for _, ch := range c.stopChs {
		chans = append(chans, ch)
	}
	c.stopChs = make(map[string]chan struct{})
	c.mu.Unlock()

	for _, ch := range chans {
		close(ch)
	}
	c.wg.Wait()
}

func (c *Controller) pullLoop(a Adapter, stop chan struct{}) {
	defer c.wg.Done()
	interval := a.PullInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := c.logger.With().Str("adapter", a.Name()).Logger()
	logger.Info().Msg("controller adapter pull loop started")
	for {
		select {
		case <-ticker.C:
			c.runPull(a, logger)
		case <-stop:
			logger.Info().Msg("controller adapter pull loop stopped")
			return
		}
	}
}

func (c *Controller) runPull(a Adapter, logger zerolog.Logger) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ControllerPullDuration, a.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resources, err := a.Pull(ctx)
	if err != nil {
		metrics.ControllerErrorsTotal.WithLabelValues(a.Name()).Inc()
		logger.Error().Err(&ControllerError{Adapter: a.Name(), Err: err}).Msg("adapter pull failed")
		return
	}
	if err := c.InventoryPush(a.Name(), a.DatacenterID(), resources, c.clock.Now()); err != nil {
		logger.Error().Err(err).Msg("failed to apply pulled inventory")
	}
}

// InventoryPush replaces the adapter's known resource slice: every
// resource in resources is upserted and marked active; any resource
// previously owned by this adapter but absent from resources accrues a
// miss, and is tombstoned (set offline) once it has been missing for
// graceInterval consecutive pushes.
func (c *Controller) InventoryPush(adapterName, _ string, resources []model.Resource, ts clock.Timestamp) error {
	c.mu.Lock()
	owned := c.owned[adapterName]
	if owned == nil {
		owned = make(map[string]bool)
		c.owned[adapterName] = owned
	}
	misses := c.misses[adapterName]
	if misses == nil {
		misses = make(map[string]int)
		c.misses[adapterName] = misses
	}
	c.mu.Unlock()

	present := make(map[string]bool, len(resources))
	for _, r := range resources {
		present[r.ID] = true
		if err := c.model.UpsertResource(r.ID, r.Kind, r.Capacity, r.Attributes, ts); err != nil {
			return err
		}
		if err := c.model.SetResourceState(r.ID, model.ResourceStateActive, ts); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range owned {
		if present[id] {
			misses[id] = 0
			continue
		}
		misses[id]++
		if misses[id] >= c.graceInterval {
			_ = c.model.SetResourceState(id, model.ResourceStateOffline, ts)
			delete(owned, id)
			delete(misses, id)
		}
	}
	for id := range present {
		owned[id] = true
	}
	return nil
}

// NotifyPlaced runs every registered adapter's PlacementHook against
// claim, in no defined order, without filtering by which adapter owns
// the resources in placements. The first adapter
// to return an error wins: the claim reverts to admitted and every
// resource in placements is degraded for the cool-off window. Wired by
// the scheduler after a successful place() so real placements get a
// chance to be rejected by the owning adapter.
func (c *Controller) NotifyPlaced(ctx context.Context, claim model.Claim, placements map[string][]string) error {
	c.mu.Lock()
	adapters := make([]Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		adapters = append(adapters, a)
	}
	c.mu.Unlock()

	for _, a := range adapters {
		if err := a.PlacementHook(ctx, claim, placements); err != nil {
			metrics.ControllerErrorsTotal.WithLabelValues(a.Name()).Inc()
			cerr := &ControllerError{Adapter: a.Name(), Err: err}
			c.logger.Warn().Err(cerr).Str("claim", claim.ID).Msg("placement hook rejected, reverting claim")

			ts := c.clock.Now()
			_ = c.model.SetClaimStatus(claim.ID, model.ClaimStatusAdmitted, ts)
			var ids []string
			for _, resourceIDs := range placements {
				ids = append(ids, resourceIDs...)
			}
			c.degraded.mark(ids, time.Now().Add(c.coolOff))
			for _, rid := range ids {
				_ = c.model.SetResourceState(rid, model.ResourceStateDegraded, ts)
			}
			return cerr
		}
	}
	return nil
}

