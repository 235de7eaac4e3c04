package clock

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is the (wall_ms, logical_counter, peer_id) triple that totally
// orders events across a horao cluster. Ordering is lexicographic on the
// triple: wall time first, then the logical counter, then the peer ID as a
// final, deterministic tie-break.
type Timestamp struct {
	WallMs  int64  `json:"wall_ms"`
	Counter uint64 `json:"logical_counter"`
	PeerID  string `json:"peer_id"`
}

// Zero is the timestamp that precedes every timestamp a real clock can
// produce. It is the "absent" sentinel used by LWW registers before their
// first write.
var Zero = Timestamp{}

// Before reports whether a happened strictly before b.
func (a Timestamp) Before(b Timestamp) bool {
	return a.Less(b)
}

// Less implements the triple's lexicographic order.
func (a Timestamp) Less(b Timestamp) bool {
	if a.WallMs != b.WallMs {
		return a.WallMs < b.WallMs
	}
	if a.Counter != b.Counter {
		return a.Counter < b.Counter
	}
	return a.PeerID < b.PeerID
}

// After reports whether a happened strictly after b.
func (a Timestamp) After(b Timestamp) bool {
	return b.Less(a)
}

// IsZero reports whether this is the absent sentinel.
func (a Timestamp) IsZero() bool {
	return a == Zero
}

// String renders the triple for logs.
func (a Timestamp) String() string {
	return fmt.Sprintf("%d.%d@%s", a.WallMs, a.Counter, a.PeerID)
}

// SkewObserver receives every remote timestamp's absolute skew against the
// local wall clock, in milliseconds, along with whether it was accepted.
// Wired by pkg/gossip to a Prometheus histogram; nil is a valid, no-op
// default.
type SkewObserver func(skewMs int64, accepted bool)

// Clock is a single peer's hybrid logical clock. It is safe for concurrent
// use; every call serializes through the internal mutex.
type Clock struct {
	mu      sync.Mutex
	peerID  string
	wall    int64
	counter uint64

	// wallNow is overridable in tests; defaults to time.Now().UnixMilli.
	wallNow func() int64

	offset   time.Duration
	observer SkewObserver
}

// New creates a clock for the given stable peer identity. clockOffset is
// the maximum wall-clock skew tolerated from a remote peer before its
// timestamp is rejected as suspicious.
func New(peerID string, clockOffset time.Duration) *Clock {
	return &Clock{
		peerID:  peerID,
		wallNow: func() int64 { return time.Now().UnixMilli() },
		offset:  clockOffset,
	}
}

// SetSkewObserver installs the hook described on SkewObserver. Safe to call
// once at startup before the clock is shared across goroutines.
func (c *Clock) SetSkewObserver(obs SkewObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = obs
}

// PeerID returns this clock's stable peer identity.
func (c *Clock) PeerID() string {
	return c.peerID
}

// Now produces the next local timestamp. If the wall clock has advanced
// since the last call, the logical counter resets to zero; otherwise it
// increments, guaranteeing strictly increasing timestamps per peer even
// when the wall clock stalls or runs backwards.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Clock) now() Timestamp {
	w := c.wallNow()
	if w > c.wall {
		c.wall = w
		c.counter = 0
	} else {
		c.counter++
	}
	return Timestamp{WallMs: c.wall, Counter: c.counter, PeerID: c.peerID}
}

// Forward unconditionally advances the clock to at least ts, with no
// skew check. Used at warm restart to absorb the persisted high-water
// mark, so the first post-restart Now() is strictly later than every
// timestamp already in the delta log even if the wall clock regressed
// while the process was down. Not for remote timestamps — those go
// through Update, which enforces the skew bound.
func (c *Clock) Forward(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts.WallMs > c.wall {
		c.wall = ts.WallMs
		c.counter = ts.Counter
		return
	}
	if ts.WallMs == c.wall && ts.Counter > c.counter {
		c.counter = ts.Counter
	}
}

// Update folds a remote timestamp into the local clock and returns the
// resulting local timestamp, which the caller should use to stamp any
// message acknowledging receipt. It rejects remote timestamps whose wall
// time differs from the local wall clock by more than the configured
// clock offset (surfaced as SyncAuthError by pkg/gossip); rejected
// timestamps are still reported to SkewObserver but do not move the local
// clock.
func (c *Clock) Update(remote Timestamp) (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.wallNow()
	skew := remote.WallMs - w
	if skew < 0 {
		skew = -skew
	}
	if c.offset > 0 && time.Duration(skew)*time.Millisecond > c.offset {
		if c.observer != nil {
			c.observer(skew, false)
		}
		return Timestamp{}, fmt.Errorf("clock: remote timestamp %s skew %dms exceeds clock_offset %s", remote, skew, c.offset)
	}
	if c.observer != nil {
		c.observer(skew, true)
	}

	switch {
	case w > c.wall && w > remote.WallMs:
		c.wall = w
		c.counter = 0
	case remote.WallMs > c.wall:
		c.wall = remote.WallMs
		c.counter = remote.Counter + 1
	case c.wall == remote.WallMs:
		if remote.Counter >= c.counter {
			c.counter = remote.Counter + 1
		} else {
			c.counter++
		}
	default:
		// c.wall > remote.WallMs: local is already ahead.
		c.counter++
	}

	return Timestamp{WallMs: c.wall, Counter: c.counter, PeerID: c.peerID}, nil
}
