// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal catalog models into transport-friendly
// DTOs so remote consumers can render entity and worker state without
// coupling to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (catalog.Kind,
// catalog.Status) are exposed as lowercase strings and timestamps use
// RFC3339 with milliseconds. Entity payloads pass through as
// json.RawMessage to avoid double-encoding.
//
// EntityService fronts the store for read traffic. Aggregate views are
// cached for a couple of seconds; single-entity reads bypass the cache so
// claim ownership is always current.
package api
