package gossip

import (
	"sync"
	"time"

	"github.com/witlox/horao/pkg/model"
)

// outbox accumulates pending CRDT ops for one peer between flushes. A
// flush fires when either threshold trips: SYNC_DELTA seconds have
// elapsed since the last flush, or the queued op count exceeds SYNC_MAX.
// Both counters reset after a flush, per the batching rule.
type outbox struct {
	mu         sync.Mutex
	pending    []DeltaBody
	ops        int
	lastFlush  time.Time
	syncDelta  time.Duration
	syncMax    int
	maxPending int // hard cap; overflow forces a snapshot handshake instead of growing unbounded
}

func newOutbox(syncDelta time.Duration, syncMax int) *outbox {
	return &outbox{
		lastFlush:  time.Now(),
		syncDelta:  syncDelta,
		syncMax:    syncMax,
		maxPending: syncMax * 4,
	}
}

// add enqueues a batch of ops originating from origin. It reports whether
// the queue overflowed its hard cap, in which case the caller should fall
// back to a full-snapshot handshake rather than keep batching deltas.
func (o *outbox) add(origin string, d model.Delta) (overflowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, DeltaBody{Origin: origin, Delta: d})
	o.ops += opCount(d)
	return o.ops > o.maxPending
}

// due reports whether a flush should fire right now.
func (o *outbox) due(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops == 0 {
		return false
	}
	return now.Sub(o.lastFlush) > o.syncDelta || o.ops > o.syncMax
}

// dueTrigger reports which threshold caused due to return true: "sync_max"
// takes precedence when both have tripped simultaneously, since a queue
// that large is the more urgent condition to surface in metrics.
func (o *outbox) dueTrigger(now time.Time) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops > o.syncMax {
		return "sync_max"
	}
	return "sync_delta"
}

// drain removes and returns every pending batch, resetting both
// thresholds' counters.
func (o *outbox) drain(now time.Time) []DeltaBody {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	o.ops = 0
	o.lastFlush = now
	return out
}

// restore puts unflushed batches back to the front of the queue, used when a
// flush attempt fails to send (connection dropped mid-drain) so the ops
// are resent on reconnect rather than lost.
func (o *outbox) restore(batches []DeltaBody) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(batches, o.pending...)
	for _, b := range batches {
		o.ops += opCount(b.Delta)
	}
}
