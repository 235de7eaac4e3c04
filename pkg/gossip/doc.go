/*
Package gossip implements the peer synchronization engine: a websocket
mesh over which peers exchange batched CRDT deltas, authenticated by a
shared-secret HMAC and ordered by the hybrid logical clock in pkg/clock.

# Wire protocol

Every frame is a JSON Envelope:

	{v, kind, sender, host_id, ts, hmac, body}

kind is one of HELLO, DELTA, SNAPSHOT_REQ, or SNAPSHOT. The HMAC covers
the canonical JSON serialization of every other field; Sign/Verify in
hmac.go implement this by marshaling a copy of the envelope with its own
HMAC field cleared.

# Node

Node is the per-process gossip endpoint: it accepts inbound connections
(ServeHTTP, mounted by the caller behind an HTTP server) and dials
outbound ones for every configured peer, reconnecting on a bounded
backoff. Each live connection is managed by a Peer, which owns one
reader goroutine, one writer goroutine, and a backpressure outbox
(queue.go) flushed when SYNC_DELTA seconds have elapsed or SYNC_MAX
operations have queued, whichever comes first.

A received DELTA is merged into the shared model.Model, recorded through
the store engine's RecordDelta for warm restart, then forwarded to every
other connected peer (anti-entropy fan-out) after deduplication by
(origin_peer_id, timestamp) so a gossiped delta doesn't echo forever.

# Usage

	node := gossip.NewNode(gossip.Config{
		PeerID: "dc1", HostID: "dc1.example.com", Secret: []byte(secret),
		SyncDelta: 180 * time.Second, SyncMax: 1000,
	}, m, c, engine)
	http.Handle("/gossip", node)
	node.Dial(ctx, "dc2", "wss://dc2.example.com/gossip")
*/
package gossip
