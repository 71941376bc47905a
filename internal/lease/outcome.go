package lease

import (
	"time"

	"helix/internal/catalog"
)

type result int

const (
	resultSuccess result = iota
	resultFailure
	resultAbandoned
)

// Outcome describes how a claim ends. Construct one with Success, Failure,
// or Abandon and pass it to Manager.Release.
type Outcome struct {
	result  result
	next    catalog.Status
	flags   map[string]bool
	failure catalog.FailureInfo
	event   string
}

// Success releases the claim and advances the entity to next. flags are
// merged into the entity's flag set; event overrides the default history
// line when non-empty.
func Success(next catalog.Status, flags map[string]bool, event string) Outcome {
	return Outcome{result: resultSuccess, next: next, flags: flags, event: event}
}

// Failure releases the claim and records the failure without changing the
// entity's status, so the work can be retried.
func Failure(failureKind, message string) Outcome {
	return Outcome{
		result: resultFailure,
		failure: catalog.FailureInfo{
			Kind:       failureKind,
			Message:    message,
			OccurredAt: time.Now().UTC(),
		},
	}
}

// Abandon releases the claim with no status change and no failure record,
// for orderly shutdown mid-task.
func Abandon() Outcome {
	return Outcome{result: resultAbandoned}
}

// Succeeded reports whether the outcome is a success release.
func (o Outcome) Succeeded() bool {
	return o.result == resultSuccess
}
