package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/witlox/horao/pkg/model"
)

func TestOutboxDueOnSyncMax(t *testing.T) {
	o := newOutbox(time.Hour, 2)
	now := time.Now()

	assert.False(t, o.due(now))
	o.add("p1", model.Delta{Resources: []model.ResourceDelta{{ID: "r1"}, {ID: "r2"}, {ID: "r3"}}})
	assert.True(t, o.due(now))
	assert.Equal(t, "sync_max", o.dueTrigger(now))
}

func TestOutboxDueOnSyncDelta(t *testing.T) {
	o := newOutbox(10*time.Millisecond, 1000)
	o.add("p1", model.Delta{Resources: []model.ResourceDelta{{ID: "r1"}}})

	assert.False(t, o.due(time.Now()))
	later := time.Now().Add(20 * time.Millisecond)
	assert.True(t, o.due(later))
	assert.Equal(t, "sync_delta", o.dueTrigger(later))
}

func TestOutboxDrainResetsCounters(t *testing.T) {
	o := newOutbox(time.Hour, 1)
	o.add("p1", model.Delta{Resources: []model.ResourceDelta{{ID: "r1"}, {ID: "r2"}}})
	require := assert.New(t)
	require.True(o.due(time.Now()))

	batches := o.drain(time.Now())
	require.Len(batches, 1)
	require.False(o.due(time.Now()))
}

func TestOutboxAddReportsOverflow(t *testing.T) {
	o := newOutbox(time.Hour, 2) // maxPending = 8
	overflowed := false
	for i := 0; i < 5; i++ {
		d := model.Delta{Resources: []model.ResourceDelta{{ID: "r1"}, {ID: "r2"}}}
		if o.add("p1", d) {
			overflowed = true
		}
	}
	assert.True(t, overflowed)
}

func TestOutboxRestorePrependsBatches(t *testing.T) {
	o := newOutbox(time.Hour, 10)
	o.add("p1", model.Delta{Resources: []model.ResourceDelta{{ID: "r1"}}})
	batches := o.drain(time.Now())

	o.add("p2", model.Delta{Resources: []model.ResourceDelta{{ID: "r2"}}})
	o.restore(batches)

	assert.Equal(t, "p1", o.pending[0].Origin)
	assert.Equal(t, "p2", o.pending[1].Origin)
}
