// Package model exposes typed, validated operations over the CRDT
// primitives in pkg/crdt: resources, datacenters (physically ordered rows
// of racks of resources), logical infrastructure groupings, and
// reservation claims. Every entity is stored in a flat, id-keyed
// container; nothing owns another entity exclusively, and cross-entity
// references are always by id, never by pointer into another entity's
// storage, so a Rack can reference Resources that also belong to no Rack
// at all and a Logical Infrastructure can reference Resources spanning
// multiple Datacenters.
//
// Validation here is a local read-then-write: it reads the current
// materialized view, checks preconditions, and writes a stamped CRDT op.
// Because every underlying write is last-writer-wins or set-based,
// concurrent conflicting writes are still resolved deterministically once
// merged — validation narrows what a single call will attempt, it does
// not provide mutual exclusion across peers.
package model
