package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowMonotonic(t *testing.T) {
	c := New("peer-a", time.Second)
	t0 := 1000
	c.wallNow = func() int64 { return int64(t0) }

	first := c.Now()
	second := c.Now()
	third := c.Now()

	assert.True(t, first.Before(second))
	assert.True(t, second.Before(third))
	assert.Equal(t, "peer-a", third.PeerID)
}

func TestNowAdvancesWallResetsCounter(t *testing.T) {
	c := New("peer-a", time.Second)
	w := int64(1000)
	c.wallNow = func() int64 { return w }

	a := c.Now()
	a2 := c.Now()
	assert.Equal(t, uint64(0), a.Counter)
	assert.Equal(t, uint64(1), a2.Counter)

	w = 1001
	b := c.Now()
	assert.Equal(t, int64(1001), b.WallMs)
	assert.Equal(t, uint64(0), b.Counter)
}

func TestUpdateAdvancesPastRemote(t *testing.T) {
	c := New("peer-a", time.Minute)
	c.wallNow = func() int64 { return 1000 }

	remote := Timestamp{WallMs: 5000, Counter: 3, PeerID: "peer-b"}
	ts, err := c.Update(remote)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), ts.WallMs)
	assert.Equal(t, uint64(4), ts.Counter)
	assert.Equal(t, "peer-a", ts.PeerID)

	// A subsequent local Now() must still be strictly greater.
	next := c.Now()
	assert.True(t, ts.Before(next))
}

func TestUpdateRejectsExcessiveSkew(t *testing.T) {
	c := New("peer-a", 100*time.Millisecond)
	c.wallNow = func() int64 { return 1_000_000 }

	remote := Timestamp{WallMs: 1_000_000 + 5000, Counter: 0, PeerID: "peer-b"}
	var gotSkew int64
	var gotAccepted bool
	c.SetSkewObserver(func(skewMs int64, accepted bool) {
		gotSkew = skewMs
		gotAccepted = accepted
	})

	_, err := c.Update(remote)
	require.Error(t, err)
	assert.Equal(t, int64(5000), gotSkew)
	assert.False(t, gotAccepted)
}

func TestForwardAbsorbsPersistedHighWater(t *testing.T) {
	c := New("peer-a", time.Second)
	c.wallNow = func() int64 { return 1000 }

	// Restarting with a log whose newest timestamp is ahead of the
	// (regressed) wall clock: the next Now() must still come out later.
	hwm := Timestamp{WallMs: 9000, Counter: 7, PeerID: "peer-a"}
	c.Forward(hwm)

	next := c.Now()
	assert.True(t, hwm.Before(next))
}

func TestForwardNeverRegresses(t *testing.T) {
	c := New("peer-a", time.Second)
	c.wallNow = func() int64 { return 5000 }
	first := c.Now()

	c.Forward(Timestamp{WallMs: 10, Counter: 0, PeerID: "peer-a"})
	assert.True(t, first.Before(c.Now()))
}

func TestTimestampOrderingTieBreaksOnPeerID(t *testing.T) {
	a := Timestamp{WallMs: 10, Counter: 1, PeerID: "alpha"}
	b := Timestamp{WallMs: 10, Counter: 1, PeerID: "beta"}
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
}

func TestZeroIsBeforeEverything(t *testing.T) {
	ts := Timestamp{WallMs: 1, Counter: 0, PeerID: "a"}
	assert.True(t, Zero.Before(ts))
	assert.True(t, Zero.IsZero())
}
