package gossip

import "fmt"

// SyncAuthError covers every reason an inbound message is rejected before
// it reaches the CRDT layer: HMAC mismatch, clock skew beyond the
// configured offset, or (in strict mode) a sender endpoint not present in
// the configured peer list. The connection is dropped and
// metrics.SyncAuthFailuresTotal incremented; the peer's last-seen
// timestamp is left unchanged.
type SyncAuthError struct {
	Peer   string
	Reason string
}

func (e *SyncAuthError) Error() string {
	return fmt.Sprintf("gossip: rejected message from %q: %s", e.Peer, e.Reason)
}

// SyncTransportError wraps a websocket dial, read, or write failure. The
// peer's queue is preserved and retried on reconnect; only configuration
// removal discards it.
type SyncTransportError struct {
	Peer string
	Err  error
}

func (e *SyncTransportError) Error() string {
	return fmt.Sprintf("gossip: transport error with peer %q: %v", e.Peer, e.Err)
}

func (e *SyncTransportError) Unwrap() error {
	return e.Err
}
