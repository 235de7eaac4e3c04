package controller

import (
	"sync"
	"time"

	"github.com/witlox/horao/pkg/model"
)

// coolOffTracker remembers which resources a rejected placement hook
// degraded and when each may return to service. It only tracks the
// expiry schedule; the degraded state itself lives in the model, where
// the scheduler's placement filter already excludes it.
type coolOffTracker struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

func newCoolOffTracker() *coolOffTracker {
	return &coolOffTracker{expiry: make(map[string]time.Time)}
}

// mark schedules every id to come back into service at until. A resource
// degraded again while already cooling has its window extended, never
// shortened.
func (t *coolOffTracker) mark(ids []string, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if cur, ok := t.expiry[id]; !ok || until.After(cur) {
			t.expiry[id] = until
		}
	}
}

// takeExpired removes and returns every id whose cool-off window has
// passed as of now.
func (t *coolOffTracker) takeExpired(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, until := range t.expiry {
		if now.After(until) {
			out = append(out, id)
			delete(t.expiry, id)
		}
	}
	return out
}

func (c *Controller) cooldownLoop(stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepCooldowns()
		case <-stop:
			return
		}
	}
}

// sweepCooldowns restores every resource whose cool-off window elapsed
// back to active.
func (c *Controller) sweepCooldowns() {
	expired := c.degraded.takeExpired(time.Now())
	if len(expired) == 0 {
		return
	}
	ts := c.clock.Now()
	for _, id := range expired {
		_ = c.model.SetResourceState(id, model.ResourceStateActive, ts)
	}
}
