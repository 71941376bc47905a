package catalog

import "errors"

// Protocol errors surfaced by the store. Callers are expected to branch on
// these with errors.Is; the store never swallows them.
var (
	// ErrNotFound means the referenced entity or worker does not exist.
	// The caller's reference is stale and must be re-resolved.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed means an active, unexpired lease is held by
	// another worker. Retryable after backoff, or poll for other work.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrNotOwner means the caller's lease was stolen mid-operation. The
	// current work attempt is dead: abort immediately and write nothing
	// further.
	ErrNotOwner = errors.New("not lease owner")

	// ErrInvalidTransition means the requested status is not reachable
	// from the entity's current status. Nothing is mutated and no event
	// is appended.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateName means an entity with the same kind and name
	// already exists.
	ErrDuplicateName = errors.New("duplicate entity name")

	// ErrStoreUnavailable wraps transient infrastructure failures. The
	// store does not retry internally beyond short busy backoff; retry
	// policy belongs to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
