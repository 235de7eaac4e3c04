// Package clock implements the hybrid logical clock that orders every
// mutation in a horao cluster. Every CRDT write is stamped by Now(); every
// message received from a peer is folded back in through Update, which
// advances the local clock at least as far as the remote one without ever
// moving it backwards.
package clock
