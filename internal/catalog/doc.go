// Package catalog owns the shared entity records that workers coordinate
// over: datasets, data products, conversions, uploads, downloads, and
// browser sessions, plus the worker registry rows and the per-entity event
// history.
//
// The package provides the SQLite-backed store with the conditional claim
// primitives every other component builds on. All claim, renew, release,
// and status-transition operations are single conditional statements (or
// short transactions), never read-then-write, so concurrent workers can
// race safely against the same records.
package catalog
