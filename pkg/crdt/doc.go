// Package crdt provides the conflict-free replicated data types the rest of
// horao builds on: Register (LWW), Map (LWW), ORSet, FArray
// (fractional-index), and MVMap (multi-value). Every primitive exposes the
// same informal capability set — apply a local op, merge a remote
// snapshot, extract a delta since a timestamp, read the materialized
// value — without a shared Go interface across them, since each
// primitive's op and value shapes differ per type parameter and no caller
// needs to treat them polymorphically.
//
// All merges are pure functions over (state, state) -> state: commutative,
// associative, and idempotent, so convergence does not depend on delivery
// order, and merging a state with itself is a no-op.
package crdt
