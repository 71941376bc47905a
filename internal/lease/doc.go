// Package lease implements the claim protocol over the catalog store:
// acquire, renew, steal on expiry or worker staleness, and release with a
// success, failure, or abandon outcome. All decisions go through the
// store's conditional updates, so concurrent managers in separate
// processes stay correct without shared state.
package lease
