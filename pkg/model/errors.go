package model

import "fmt"

// InvalidKindError is returned when a resource is upserted with a kind
// outside the allowed set.
type InvalidKindError struct {
	Kind ResourceKind
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("model: invalid resource kind %q", e.Kind)
}

// CapacityShapeError is returned when a capacity vector carries dimensions
// that don't match its kind's expected schema.
type CapacityShapeError struct {
	Kind       ResourceKind
	Dimensions []string
}

func (e *CapacityShapeError) Error() string {
	return fmt.Sprintf("model: capacity vector dimensions %v don't match kind %q's schema", e.Dimensions, e.Kind)
}

// UnknownResourceError is returned when an operation references a
// resource id with no observable create.
type UnknownResourceError struct {
	ID string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("model: unknown resource %q", e.ID)
}

// UnknownDatacenterError is returned when an operation references a
// datacenter id with no observable create.
type UnknownDatacenterError struct {
	ID string
}

func (e *UnknownDatacenterError) Error() string {
	return fmt.Sprintf("model: unknown datacenter %q", e.ID)
}

// UnknownLogicalGroupError is returned when an operation references a
// logical infrastructure id with no observable create.
type UnknownLogicalGroupError struct {
	ID string
}

func (e *UnknownLogicalGroupError) Error() string {
	return fmt.Sprintf("model: unknown logical group %q", e.ID)
}

// UnknownClaimError is returned when an operation references a claim id
// with no observable submit.
type UnknownClaimError struct {
	ID string
}

func (e *UnknownClaimError) Error() string {
	return fmt.Sprintf("model: unknown claim %q", e.ID)
}

// IndexOutOfRangeError is returned when attach_to_rack addresses a
// negative row or rack index; any non-negative index is auto-vivified.
type IndexOutOfRangeError struct {
	RowIdx, RackIdx int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("model: row/rack index (%d, %d) out of range", e.RowIdx, e.RackIdx)
}
