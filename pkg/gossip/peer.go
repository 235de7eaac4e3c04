package gossip

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/metrics"
)

// writeDeadline and readDeadline bound every websocket I/O per the
// cooperative-cancellation discipline: no operation blocks forever.
const (
	writeDeadline = 10 * time.Second
	readDeadline  = 90 * time.Second
	pingInterval  = 30 * time.Second
)

// Peer manages one live websocket connection to another gossip endpoint.
// It owns one reader goroutine and one writer goroutine, communicating
// with them only through channels and its outbox — no field is touched
// from more than one goroutine without going through the outbox's own
// lock.
type Peer struct {
	id       string // peer_id; empty for an inbound connection until its HELLO arrives
	endpoint string // dial target; empty for an inbound-only connection

	conn   *websocket.Conn
	node   *Node
	logger zerolog.Logger

	// outbox points at the node-owned persistent queue for this peer_id
	// once the peer is identified; boxMu guards the swap against the
	// flush loop reading it concurrently.
	boxMu  sync.Mutex
	outbox *outbox

	send           chan Envelope
	needsSnapshot  bool
	needsSnapshotL sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(node *Node, id, endpoint string, conn *websocket.Conn) *Peer {
	return &Peer{
		id:       id,
		endpoint: endpoint,
		conn:     conn,
		node:     node,
		outbox:   node.outboxFor(id),
		logger:   node.logger.With().Str("peer", id).Logger(),
		send:     make(chan Envelope, 16),
		done:     make(chan struct{}),
	}
}

// run starts the peer's reader, writer, and flush loops and blocks until
// any of them exits, at which point it tears the others down and
// unregisters itself from the node.
func (p *Peer) run() {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); p.readLoop() }()
	go func() { defer wg.Done(); p.writeLoop() }()
	go func() { defer wg.Done(); p.flushLoop() }()
	wg.Wait()
	p.node.forget(p)
}

func (p *Peer) box() *outbox {
	p.boxMu.Lock()
	defer p.boxMu.Unlock()
	return p.outbox
}

func (p *Peer) setBox(o *outbox) {
	p.boxMu.Lock()
	p.outbox = o
	p.boxMu.Unlock()
}

func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *Peer) readLoop() {
	defer p.close()
	for {
		_ = p.conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			metrics.SyncTransportErrorsTotal.WithLabelValues(p.id).Inc()
			p.logger.Debug().Err(err).Msg("peer read failed, closing")
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			p.logger.Warn().Err(err).Msg("malformed envelope, dropping frame")
			continue
		}
		if err := p.node.handleEnvelope(p, env); err != nil {
			p.logger.Warn().Err(err).Msg("envelope rejected")
			if _, ok := err.(*SyncAuthError); ok {
				return
			}
		}
	}
}

func (p *Peer) writeLoop() {
	defer p.close()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case env := <-p.send:
			if err := p.writeEnvelope(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.SyncTransportErrorsTotal.WithLabelValues(p.id).Inc()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) writeEnvelope(env Envelope) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		metrics.SyncTransportErrorsTotal.WithLabelValues(p.id).Inc()
		return &SyncTransportError{Peer: p.id, Err: err}
	}
	return nil
}

// enqueue stamps and signs env, then hands it to the writer goroutine.
// Blocking sends (HELLO, SNAPSHOT_REQ, SNAPSHOT, ad-hoc DELTA) go through
// this path directly; batched DELTA flushes go through flushLoop instead.
func (p *Peer) enqueue(env Envelope) {
	env.V = EnvelopeVersion
	env.Sender = p.node.cfg.PeerID
	env.HostID = p.node.cfg.HostID
	env.Ts = p.node.clock.Now()
	mac, err := sign(env, p.node.cfg.Secret)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to sign outgoing envelope")
		return
	}
	env.HMAC = mac
	select {
	case p.send <- env:
	case <-p.done:
	}
}

// trySend is enqueue's variant for the flush loop: it reports whether
// the envelope was actually handed to the writer, so a flush interrupted
// by a closing connection can put its unsent batches back in the outbox.
func (p *Peer) trySend(env Envelope) bool {
	env.V = EnvelopeVersion
	env.Sender = p.node.cfg.PeerID
	env.HostID = p.node.cfg.HostID
	env.Ts = p.node.clock.Now()
	mac, err := sign(env, p.node.cfg.Secret)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to sign outgoing envelope")
		return false
	}
	env.HMAC = mac
	select {
	case p.send <- env:
		return true
	case <-p.done:
		return false
	}
}

// markNeedsSnapshot flags that this peer's outbound queue overflowed its
// hard cap: the next flush sends a full snapshot instead of the
// (discarded, now-redundant) batched deltas.
func (p *Peer) markNeedsSnapshot() {
	p.needsSnapshotL.Lock()
	p.needsSnapshot = true
	p.needsSnapshotL.Unlock()
}

func (p *Peer) consumeNeedsSnapshot() bool {
	p.needsSnapshotL.Lock()
	defer p.needsSnapshotL.Unlock()
	v := p.needsSnapshot
	p.needsSnapshot = false
	return v
}

// flushLoop drains the outbox on the backpressure cadence described in
// queue.go, sending one DELTA envelope per batch, or a single SNAPSHOT in
// place of all of them if the queue overflowed since the last flush.
func (p *Peer) flushLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			box := p.box()
			if p.consumeNeedsSnapshot() {
				box.drain(now)
				body, err := marshalBody(SnapshotBody{State: p.node.model.Delta(clock.Zero)})
				if err != nil {
					continue
				}
				p.enqueue(Envelope{Kind: KindSnapshot, Body: body})
				metrics.GossipFlushesTotal.WithLabelValues(p.id, "overflow").Inc()
				continue
			}
			if !box.due(now) {
				continue
			}
			trigger := box.dueTrigger(now)
			batches := box.drain(now)
			for i, b := range batches {
				body, err := marshalBody(b)
				if err != nil {
					continue
				}
				if !p.trySend(Envelope{Kind: KindDelta, Body: body}) {
					box.restore(batches[i:])
					break
				}
			}
			metrics.GossipFlushesTotal.WithLabelValues(p.id, trigger).Inc()
			metrics.GossipQueueDepth.WithLabelValues(p.id).Set(0)
		case <-p.done:
			return
		}
	}
}
