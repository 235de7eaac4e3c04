/*
Package scheduler admits, places, and expires claims against the resource
model, and exposes an availability oracle for previewing placement before
submitting a claim.

# Architecture

The scheduler runs a stateless reconciliation loop, mirroring the
teacher's ticker-driven shape: every cycle reads the current model fresh
and writes decisions back through the model's own CRDT operations, never
holding cluster state of its own beyond tenant share configuration.

	┌──────────────────────────────────────────────┐
	│              Reconcile (every tick)          │
	└───────────────────┬───────────────────────────┘
	                    │
	    ┌───────────────┼────────────────┬────────────────┐
	    ▼               ▼                ▼                ▼
	resolveConflicts  admit           place            expire
	(merge-time      (pending →      (admitted →      (placed →
	 double-booking)  admitted/        placed/          expired)
	                  rejected)        rejected)

# Admission

Pending claims are ranked by a Dominant Resource Fairness style
comparison (see fairshare.go) and walked in order; each is admitted only
if the availability oracle confirms every profile's requested quantity is
physically achievable for its window, otherwise it is rejected outright.
Admission does not reserve resources — that happens at placement — so a
claim can still fail to place later if concurrently-admitted claims
consume the same capacity first.

# Placement

Maintenance claims are placed first and all-or-nothing, each profile
getting the least-loaded matching resources (see placement.go). Tenant
claims are then ranked in fair-share order and placed together: claims
contending for the same kind/attributes/window pool split its free
resources in proportion to their tenants' weights (see contention.go),
so a tenant claim can be placed with fewer resources than a profile asked
for. A claim that does not get at least one resource for every profile
stays admitted and is retried every cycle; it is only rejected once its
window's start has passed without a successful placement ("fails at
activation").

# Conflict Resolution

Two peers can admit and place overlapping claims against the same
resource before observing each other's writes. Each cycle scans placed
claims for resources double-booked within overlapping windows and reverts
the loser — the claim with the larger (admitted_at, claim_id) tuple — back
to pending so the next admission pass re-evaluates it against the merged
state.

# Usage

	sched := scheduler.NewScheduler(m, hlc, tenantShares, 5*time.Second)
	sched.Start()
	defer sched.Stop()

	// preview without mutating anything:
	max, firstStart := scheduler.AvailabilityOracle(resources, occ, kind, attrs, window, quantity)
*/
package scheduler
