// Package agent runs the worker-side loop that moves entities through
// their lifecycles.
//
// Each entity kind gets a lane: a goroutine that polls the catalog for the
// oldest eligible entity, claims it through the lease manager, advances it
// to its working status, and executes the registered stage handler while a
// background goroutine renews the lease. The release carries the outcome:
// success advances to the stage's done status and merges its flags, a
// handler error records a classified failure and leaves the status for a
// retry, and shutdown abandons the claim.
//
// Handlers are the boundary to external work. CommandHandler shells out to
// per-stage commands from the configuration; NopHandler completes
// immediately for lanes whose work happens elsewhere.
package agent
