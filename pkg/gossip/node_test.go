package gossip

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/model"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newLinkedNodes(t *testing.T, secretA, secretB []byte) (*Node, *Node, func()) {
	t.Helper()
	mA, mB := model.New(), model.New()
	cA := clock.New("peer-a", time.Second)
	cB := clock.New("peer-b", time.Second)

	nodeA := NewNode(Config{
		PeerID: "peer-a", HostID: "host-a", Secret: secretA,
		SyncDelta: 20 * time.Millisecond, SyncMax: 1,
	}, mA, cA, nil)
	nodeB := NewNode(Config{
		PeerID: "peer-b", HostID: "host-b", Secret: secretB,
		SyncDelta: 20 * time.Millisecond, SyncMax: 1,
	}, mB, cB, nil)

	server := httptest.NewServer(nodeB)
	ctx, cancel := context.WithCancel(context.Background())
	go nodeA.Dial(ctx, "peer-b", wsURL(server))

	cleanup := func() {
		cancel()
		server.Close()
	}
	return nodeA, nodeB, cleanup
}

func TestNodeHelloExchangeRegistersPeer(t *testing.T) {
	nodeA, nodeB, cleanup := newLinkedNodes(t, []byte("shared"), []byte("shared"))
	defer cleanup()

	require.Eventually(t, func() bool {
		nodeA.mu.Lock()
		defer nodeA.mu.Unlock()
		return len(nodeA.peers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		nodeB.mu.Lock()
		defer nodeB.mu.Unlock()
		return len(nodeB.peers) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNodeDeltaForwardsResourceToPeer(t *testing.T) {
	nodeA, nodeB, cleanup := newLinkedNodes(t, []byte("shared"), []byte("shared"))
	defer cleanup()

	require.Eventually(t, func() bool {
		nodeA.mu.Lock()
		defer nodeA.mu.Unlock()
		return len(nodeA.peers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ts := nodeA.clock.Now()
	before := ts
	require.NoError(t, nodeA.model.UpsertResource("r1", model.ResourceKindCompute, model.CapacityVector{"cpu": 8, "memory": 32}, nil, nodeA.clock.Now()))
	d := nodeA.model.Delta(before)
	nodeA.QueueLocal(d)

	require.Eventually(t, func() bool {
		_, ok := nodeB.model.GetResource("r1")
		return ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNodePumpPropagatesLocalWrites(t *testing.T) {
	nodeA, nodeB, cleanup := newLinkedNodes(t, []byte("shared"), []byte("shared"))
	defer cleanup()

	nodeA.Start()
	defer nodeA.Stop()

	require.Eventually(t, func() bool {
		nodeA.mu.Lock()
		defer nodeA.mu.Unlock()
		return len(nodeA.peers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// No explicit QueueLocal: the pump alone must carry the write over.
	require.NoError(t, nodeA.model.UpsertResource("r-pump", model.ResourceKindCompute, model.CapacityVector{"cpu": 8, "memory": 32}, nil, nodeA.clock.Now()))

	require.Eventually(t, func() bool {
		_, ok := nodeB.model.GetResource("r-pump")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNodeRejectsMismatchedSecret(t *testing.T) {
	_, nodeB, cleanup := newLinkedNodes(t, []byte("secret-a"), []byte("secret-b"))
	defer cleanup()

	require.Never(t, func() bool {
		nodeB.mu.Lock()
		defer nodeB.mu.Unlock()
		return len(nodeB.peers) == 1
	}, 300*time.Millisecond, 20*time.Millisecond)

	assert.Empty(t, nodeB.model.ListResources())
}
