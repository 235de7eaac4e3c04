package gossip

import (
	"encoding/json"

	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/model"
)

// EnvelopeVersion is the only wire version this package understands. An
// Envelope carrying a different V is rejected with a SyncAuthError rather
// than guessed at.
const EnvelopeVersion = 1

// Kind identifies the shape of an Envelope's Body.
type Kind string

const (
	KindHello        Kind = "HELLO"
	KindDelta        Kind = "DELTA"
	KindSnapshotReq  Kind = "SNAPSHOT_REQ"
	KindSnapshot     Kind = "SNAPSHOT"
)

// Envelope is the self-describing frame every websocket message carries.
// HMAC is computed over the JSON serialization of every other field (see
// hmac.go) and must be the last field populated before a frame is sent.
type Envelope struct {
	V      int             `json:"v"`
	Kind   Kind            `json:"kind"`
	Sender string          `json:"sender"`
	HostID string          `json:"host_id"`
	Ts     clock.Timestamp `json:"ts"`
	HMAC   string          `json:"hmac"`
	Body   json.RawMessage `json:"body"`
}

// HelloBody is exchanged on connect. LastSeenTsPerPeer maps a peer_id to
// the newest timestamp originating from that peer the sender has already
// observed; the receiver replies with a DELTA of everything newer than
// LastSeenTsPerPeer[receiver's own peer_id].
type HelloBody struct {
	PeerID            string                     `json:"peer_id"`
	HostID            string                     `json:"host_id"`
	LastSeenTsPerPeer map[string]clock.Timestamp `json:"last_seen_ts_per_peer"`
}

// DeltaBody carries a batch of CRDT operations. Origin is the peer_id
// that produced these ops originally, which may differ from the
// envelope's Sender once a delta has been forwarded through
// anti-entropy fan-out.
type DeltaBody struct {
	Origin string      `json:"origin"`
	Delta  model.Delta `json:"delta"`
}

// SnapshotReqBody requests a full state transfer, sent when a peer
// suspects its delta window has been pruned past what incremental
// catch-up can repair.
type SnapshotReqBody struct{}

// SnapshotBody carries a full materialized state: equivalent to
// Model.Delta(clock.Zero).
type SnapshotBody struct {
	State model.Delta `json:"state"`
}

func marshalBody(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

func unmarshalBody[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// opCount approximates the number of individual CRDT operations a Delta
// represents, for backpressure accounting against SYNC_MAX. Datacenters
// are counted as one op per snapshot entry since they are never split
// into field-level ops (see model.Delta's doc comment).
func opCount(d model.Delta) int {
	n := len(d.Resources) + len(d.Datacenters) + len(d.LogicalGroups) + len(d.Claims) + len(d.Profiles)
	for _, rd := range d.Resources {
		n += len(rd.Attrs)
	}
	for _, cd := range d.Claims {
		n += len(cd.Profiles) + len(cd.Placements)
	}
	return n
}
