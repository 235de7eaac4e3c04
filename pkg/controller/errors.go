package controller

import "fmt"

// ControllerError wraps a failure from an adapter's Pull or
// PlacementHook. A PlacementHook error reverts the triggering claim to
// admitted and degrades the resources it touched for a cool-off window;
// a Pull error is only logged and counted, retried on the adapter's own
// next cadence.
type ControllerError struct {
	Adapter string
	Err     error
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller: adapter %q failed: %v", e.Adapter, e.Err)
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}
