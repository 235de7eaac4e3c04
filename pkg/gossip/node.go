package gossip

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/crdt"
	"github.com/witlox/horao/pkg/log"
	"github.com/witlox/horao/pkg/metrics"
	"github.com/witlox/horao/pkg/model"
	"github.com/witlox/horao/pkg/store"
)

// Config is the peer sync engine's configuration surface, matching the
// configuration options described for the gossip layer.
type Config struct {
	PeerID string
	HostID string
	Secret []byte

	// Peers maps a peer_id to the websocket endpoint dialed to reach it.
	// In Strict mode, an inbound HELLO whose peer_id is absent here is
	// rejected as a SyncAuthError.
	Peers  map[string]string
	Strict bool

	SyncDelta time.Duration
	SyncMax   int

	DialBackoffMin time.Duration
	DialBackoffMax time.Duration
}

func (c *Config) setDefaults() {
	if c.SyncDelta <= 0 {
		c.SyncDelta = 180 * time.Second
	}
	if c.SyncMax <= 0 {
		c.SyncMax = 1000
	}
	if c.DialBackoffMin <= 0 {
		c.DialBackoffMin = time.Second
	}
	if c.DialBackoffMax <= 0 {
		c.DialBackoffMax = time.Minute
	}
}

// Node is the process-wide gossip endpoint: it accepts inbound peer
// connections through ServeHTTP and dials outbound ones through Dial,
// merging every DELTA it receives into model and fanning it back out to
// every other connected peer after origin/timestamp deduplication.
type Node struct {
	cfg    Config
	model  *model.Model
	clock  *clock.Clock
	engine *store.Engine
	logger zerolog.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	peers    map[string]*Peer // by peer_id, once known
	lastSeen map[string]clock.Timestamp

	// outboxes live on the node, keyed by peer_id, so unsent ops survive
	// a dropped connection and are resent on reconnect instead of dying
	// with the Peer that queued them.
	outboxes map[string]*outbox

	seen   *seenCache
	ledger *crdt.ObservationLedger

	cursor clock.Timestamp
	stopCh chan struct{}
}

// NewNode builds a gossip node. engine may be nil, in which case received
// deltas are merged into model but never persisted to a delta log.
func NewNode(cfg Config, m *model.Model, c *clock.Clock, engine *store.Engine) *Node {
	cfg.setDefaults()
	return &Node{
		cfg:      cfg,
		model:    m,
		clock:    c,
		engine:   engine,
		logger:   log.WithPeerID(cfg.PeerID),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are other horao processes, not browsers; same-origin
			// checks don't apply to this mesh.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers:    make(map[string]*Peer),
		lastSeen: make(map[string]clock.Timestamp),
		outboxes: make(map[string]*outbox),
		seen:     newSeenCache(8192),
		ledger:   crdt.NewObservationLedger(),
		stopCh:   make(chan struct{}),
	}
}

// Ledger exposes the tombstone observation ledger, fed by every HELLO's
// last_seen_ts_per_peer map.
func (n *Node) Ledger() *crdt.ObservationLedger {
	return n.ledger
}

// ConnectedPeers reports how many identified peer connections are
// currently live. Backs the daemon's gossip health probe.
func (n *Node) ConnectedPeers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.peers)
}

// outboxFor returns the persistent outbox for peerID, creating it on
// first use. An empty peerID (an inbound connection whose HELLO hasn't
// arrived yet) gets a throwaway outbox that is swapped for the
// persistent one once the sender identifies itself.
func (n *Node) outboxFor(peerID string) *outbox {
	if peerID == "" {
		return newOutbox(n.cfg.SyncDelta, n.cfg.SyncMax)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	o, ok := n.outboxes[peerID]
	if !ok {
		o = newOutbox(n.cfg.SyncDelta, n.cfg.SyncMax)
		n.outboxes[peerID] = o
	}
	return o
}

// Start begins the local-delta pump: every second, everything the model
// changed since the previous tick is queued to every connected peer and
// recorded in the delta log for warm restart. Remote deltas already fan
// out on arrival (forward); the pump is what propagates this node's own
// writes.
func (n *Node) Start() {
	n.cursor = n.clock.Now()
	go n.pumpLoop()
}

// Stop halts the pump loop.
func (n *Node) Stop() {
	close(n.stopCh)
}

func (n *Node) pumpLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.pump()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Node) pump() {
	ts := n.clock.Now()
	d := n.model.Delta(n.cursor)
	if d.Empty() {
		n.cursor = ts
		return
	}
	n.QueueLocal(d)
	if n.engine != nil {
		if err := n.engine.RecordDelta(n.cfg.PeerID, ts, d); err != nil {
			n.logger.Error().Err(err).Msg("failed to record local delta; state still queued for gossip")
		}
	}
	n.cursor = ts
}

// ServeHTTP upgrades an inbound connection and hands it off to the peer
// management loop. It is mounted by the caller's HTTP server at whatever
// path the deployment chooses.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	p := newPeer(n, "", "", conn)
	go p.run()
}

// Dial connects to a configured peer by endpoint, retrying with bounded
// exponential backoff (with jitter) until ctx is canceled. Call once per
// configured peer at startup; returns only when ctx is done.
func (n *Node) Dial(ctx context.Context, peerID, endpoint string) {
	backoff := n.cfg.DialBackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			n.logger.Warn().Err(err).Str("peer", peerID).Msg("dial failed, backing off")
			metrics.SyncTransportErrorsTotal.WithLabelValues(peerID).Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(backoff)):
			}
			backoff *= 2
			if backoff > n.cfg.DialBackoffMax {
				backoff = n.cfg.DialBackoffMax
			}
			continue
		}

		backoff = n.cfg.DialBackoffMin
		p := newPeer(n, peerID, endpoint, conn)
		n.register(p)
		n.sendHello(p)
		p.run()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d)/2+1))
}

func (n *Node) register(p *Peer) {
	if p.id == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[p.id] = p
}

func (n *Node) forget(p *Peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.peers[p.id] == p {
		delete(n.peers, p.id)
	}
}

func (n *Node) sendHello(p *Peer) {
	n.mu.Lock()
	snapshot := make(map[string]clock.Timestamp, len(n.lastSeen))
	for k, v := range n.lastSeen {
		snapshot[k] = v
	}
	n.mu.Unlock()

	body, err := marshalBody(HelloBody{PeerID: n.cfg.PeerID, HostID: n.cfg.HostID, LastSeenTsPerPeer: snapshot})
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to build HELLO body")
		return
	}
	p.enqueue(Envelope{Kind: KindHello, Body: body})

	// A cold-booting node (nothing loaded, nothing yet merged) asks for a
	// full state transfer up front rather than relying on the HELLO
	// reply's incremental catch-up, which only covers what the remote
	// still holds in its un-pruned delta window.
	if n.model.Delta(clock.Zero).Empty() {
		reqBody, err := marshalBody(SnapshotReqBody{})
		if err != nil {
			return
		}
		p.enqueue(Envelope{Kind: KindSnapshotReq, Body: reqBody})
	}
}

// handleEnvelope authenticates env, then dispatches on its Kind. It
// returns a *SyncAuthError for every authentication failure so readLoop
// can decide to drop the connection.
func (n *Node) handleEnvelope(p *Peer, env Envelope) error {
	if env.V != EnvelopeVersion {
		return &SyncAuthError{Peer: env.Sender, Reason: fmt.Sprintf("unsupported envelope version %d", env.V)}
	}
	if !verify(env, n.cfg.Secret) {
		metrics.SyncAuthFailuresTotal.WithLabelValues("hmac").Inc()
		return &SyncAuthError{Peer: env.Sender, Reason: "HMAC mismatch"}
	}
	if _, err := n.clock.Update(env.Ts); err != nil {
		metrics.SyncAuthFailuresTotal.WithLabelValues("skew").Inc()
		return &SyncAuthError{Peer: env.Sender, Reason: err.Error()}
	}
	if n.cfg.Strict {
		if _, known := n.cfg.Peers[env.Sender]; !known {
			metrics.SyncAuthFailuresTotal.WithLabelValues("unknown_peer").Inc()
			return &SyncAuthError{Peer: env.Sender, Reason: "sender not in configured peer list"}
		}
	}

	if p.id == "" && env.Sender != "" {
		p.id = env.Sender
		p.logger = p.logger.With().Str("peer", p.id).Logger()
		// The throwaway outbox a not-yet-identified inbound peer was
		// created with has never been written to (forward/QueueLocal only
		// target registered peers), so swapping it for the persistent one
		// loses nothing.
		p.setBox(n.outboxFor(p.id))
		n.register(p)
	}

	switch env.Kind {
	case KindHello:
		return n.handleHello(p, env)
	case KindDelta:
		return n.handleDelta(p, env)
	case KindSnapshotReq:
		return n.handleSnapshotReq(p, env)
	case KindSnapshot:
		return n.handleSnapshot(p, env)
	default:
		return fmt.Errorf("gossip: unknown envelope kind %q", env.Kind)
	}
}

func (n *Node) handleHello(p *Peer, env Envelope) error {
	hello, err := unmarshalBody[HelloBody](env.Body)
	if err != nil {
		return fmt.Errorf("gossip: malformed HELLO body: %w", err)
	}
	for origin, seen := range hello.LastSeenTsPerPeer {
		n.ledger.Ack(hello.PeerID, origin, seen)
	}
	since := hello.LastSeenTsPerPeer[n.cfg.PeerID]
	d := n.model.Delta(since)
	body, err := marshalBody(DeltaBody{Origin: n.cfg.PeerID, Delta: d})
	if err != nil {
		return err
	}
	p.enqueue(Envelope{Kind: KindDelta, Body: body})
	return nil
}

func (n *Node) handleDelta(p *Peer, env Envelope) error {
	db, err := unmarshalBody[DeltaBody](env.Body)
	if err != nil {
		return fmt.Errorf("gossip: malformed DELTA body: %w", err)
	}

	if n.seen.seenOrMark(db.Origin, env.Ts) {
		return nil
	}

	n.model.ApplyDelta(db.Delta)
	metrics.DeltasAppliedTotal.WithLabelValues(db.Origin).Inc()

	if n.engine != nil {
		if err := n.engine.RecordDelta(db.Origin, env.Ts, db.Delta); err != nil {
			var se *store.StoreError
			if !errors.As(err, &se) {
				se = &store.StoreError{Op: "gossip_record_delta", Err: err}
			}
			n.logger.Error().Err(se).Msg("failed to record received delta; state still merged in memory")
		}
	}

	n.mu.Lock()
	if cur, ok := n.lastSeen[db.Origin]; !ok || cur.Less(env.Ts) {
		n.lastSeen[db.Origin] = env.Ts
	}
	n.mu.Unlock()

	n.forward(p.id, db.Origin, db.Delta)
	return nil
}

func (n *Node) handleSnapshotReq(p *Peer, _ Envelope) error {
	body, err := marshalBody(SnapshotBody{State: n.model.Delta(clock.Zero)})
	if err != nil {
		return err
	}
	p.enqueue(Envelope{Kind: KindSnapshot, Body: body})
	return nil
}

func (n *Node) handleSnapshot(_ *Peer, env Envelope) error {
	snap, err := unmarshalBody[SnapshotBody](env.Body)
	if err != nil {
		return fmt.Errorf("gossip: malformed SNAPSHOT body: %w", err)
	}
	n.model.ApplyDelta(snap.State)
	return nil
}

// forward fans a received delta out to every other connected peer,
// skipping the one it arrived from and the peer that originated it.
// Each destination's own outbox
// absorbs the batching/backpressure decision independently.
func (n *Node) forward(fromPeerID, origin string, d model.Delta) {
	n.mu.Lock()
	targets := make([]*Peer, 0, len(n.peers))
	for id, p := range n.peers {
		if id == fromPeerID || id == origin {
			continue
		}
		targets = append(targets, p)
	}
	n.mu.Unlock()

	for _, p := range targets {
		if p.box().add(origin, d) {
			p.markNeedsSnapshot()
		}
		metrics.GossipQueueDepth.WithLabelValues(p.id).Inc()
	}
}

// QueueLocal enqueues a locally-originated delta (one this node itself
// produced, e.g. after admitting a claim or upserting a resource) for
// gossip to every connected peer.
func (n *Node) QueueLocal(d model.Delta) {
	n.mu.Lock()
	targets := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		targets = append(targets, p)
	}
	n.mu.Unlock()

	for _, p := range targets {
		if p.box().add(n.cfg.PeerID, d) {
			p.markNeedsSnapshot()
		}
		metrics.GossipQueueDepth.WithLabelValues(p.id).Inc()
	}
}
