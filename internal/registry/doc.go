// Package registry tracks worker processes: registration keyed on name and
// host, periodic heartbeats with the current command, and the staleness
// sweep that marks silent workers so their leases become stealable. Worker
// records are never deleted.
package registry
