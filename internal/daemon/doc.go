// Package daemon ties the catalog services into a single long-running
// process: worker registration and heartbeats, the agent lanes, the worker
// staleness sweep, the notification poller, Prometheus metrics, and the
// HTTP API for remote claim, renew, release, and inspection traffic.
//
// A flock-based lock in the state directory prevents a second daemon from
// starting against the same catalog.
package daemon
