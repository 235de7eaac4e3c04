/*
Package controller implements the abstract provider contract: each
Adapter owns a slice of the resource inventory, pushed or pulled on its
own cadence, and acknowledges claims as they're placed.

# Adapter

An Adapter implements Name and DatacenterID (its identity), Pull (fetch
the adapter's current view of its resources, called on PullInterval),
PlacementHook (called when a claim transitions to placed; an error here
reverts the claim and degrades the resources involved), and PullInterval
itself.

# Inventory ownership

InventoryPush treats an adapter as authoritative for whichever resource
ids it pushes: every push replaces that adapter's known set, and a
resource absent from GraceInterval consecutive pushes is tombstoned
(transitioned to offline) rather than deleted outright — CRDT resource
entries are never removed, only retired, mirroring how pkg/model never
deletes a resource id either.

# Degraded cool-off

A PlacementHook error marks every resource the failed placement touched
ResourceStateDegraded, excluding it from pkg/scheduler's placement pass
(matches only accepts ResourceStateActive) until CoolOff elapses, at
which point Controller's own sweep restores it to active.

# Usage

	ctl := controller.NewController(m, c, 3, 2*time.Minute)
	ctl.Register(myAdapter)
	ctl.Start()
	defer ctl.Stop()
*/
package controller
