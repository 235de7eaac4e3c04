package gossip

import (
	"sync"

	"github.com/witlox/horao/pkg/clock"
)

// dedupKey identifies one forwarded delta batch by the peer that
// originally produced it and the timestamp it was stamped with — the
// pair the protocol uses to suppress infinite re-forwarding during
// anti-entropy fan-out.
type dedupKey struct {
	origin string
	ts     clock.Timestamp
}

// seenCache is a bounded set of recently forwarded dedupKeys. It is not a
// true LRU: once capacity is reached it clears entirely rather than
// evicting piecemeal, which is simpler and acceptable because a cleared
// cache only costs a few redundant forwards, never incorrect merges
// (every CRDT apply is idempotent).
type seenCache struct {
	mu       sync.Mutex
	seen     map[dedupKey]struct{}
	capacity int
}

func newSeenCache(capacity int) *seenCache {
	return &seenCache{seen: make(map[dedupKey]struct{}), capacity: capacity}
}

// seenOrMark reports whether (origin, ts) has already been forwarded; if
// not, it marks it as seen and returns false.
func (c *seenCache) seenOrMark(origin string, ts clock.Timestamp) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := dedupKey{origin: origin, ts: ts}
	if _, ok := c.seen[k]; ok {
		return true
	}
	if len(c.seen) >= c.capacity {
		c.seen = make(map[dedupKey]struct{})
	}
	c.seen[k] = struct{}{}
	return false
}
