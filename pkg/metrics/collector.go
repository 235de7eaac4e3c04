package metrics

import (
	"time"

	"github.com/witlox/horao/pkg/model"
)

// Collector periodically samples a Model and publishes gauge metrics
// derived from its materialized views.
type Collector struct {
	model  *model.Model
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over model.
func NewCollector(m *model.Model) *Collector {
	return &Collector{
		model:  m,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectResourceMetrics()
	c.collectDatacenterMetrics()
	c.collectClaimMetrics()
}

func (c *Collector) collectResourceMetrics() {
	resources := c.model.ListResources()

	counts := make(map[string]map[string]int)
	for _, r := range resources {
		kind := string(r.Kind)
		state := string(r.State)
		if counts[kind] == nil {
			counts[kind] = make(map[string]int)
		}
		counts[kind][state]++
	}

	for kind, states := range counts {
		for state, n := range states {
			ResourcesTotal.WithLabelValues(kind, state).Set(float64(n))
		}
	}
}

func (c *Collector) collectDatacenterMetrics() {
	DatacentersTotal.Set(float64(len(c.model.ListDatacenters())))
}

func (c *Collector) collectClaimMetrics() {
	claims := c.model.ListClaims()

	counts := make(map[string]int)
	for _, cl := range claims {
		counts[string(cl.Status)]++
	}

	for status, n := range counts {
		ClaimsTotal.WithLabelValues(status).Set(float64(n))
	}
}
