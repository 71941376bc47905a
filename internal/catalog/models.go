package catalog

import (
	"strings"
	"time"
)

// Kind identifies an entity family. Every kind shares the claim and event
// mechanics but carries its own status graph and flag set.
type Kind string

const (
	KindDataset     Kind = "dataset"
	KindDataProduct Kind = "dataproduct"
	KindConversion  Kind = "conversion"
	KindUpload      Kind = "upload"
	KindDownload    Kind = "download"
	KindSession     Kind = "session"
)

var allKinds = []Kind{
	KindDataset,
	KindDataProduct,
	KindConversion,
	KindUpload,
	KindDownload,
	KindSession,
}

// AllKinds returns the ordered list of known entity kinds.
func AllKinds() []Kind {
	cp := make([]Kind, len(allKinds))
	copy(cp, allKinds)
	return cp
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// Status represents a position in an entity kind's lifecycle.
type Status string

// Dataset lifecycle: raw sequencer output moves from inspection through
// staging, validation, and conversion before landing in cold storage.
const (
	StatusNew        Status = "new"
	StatusInspecting Status = "inspecting"
	StatusInspected  Status = "inspected"
	StatusStaging    Status = "staging"
	StatusStaged     Status = "staged"
	StatusValidating Status = "validating"
	StatusValidated  Status = "validated"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusArchiving  Status = "archiving"
	StatusArchived   Status = "archived"
)

// Data product lifecycle statuses not shared with datasets.
const (
	StatusRegistered Status = "registered"
)

// Conversion lifecycle statuses not shared with datasets.
const (
	StatusPending Status = "pending"
)

// Upload lifecycle.
const (
	StatusReceiving Status = "receiving"
	StatusReceived  Status = "received"
	StatusImporting Status = "importing"
	StatusImported  Status = "imported"
)

// Download lifecycle.
const (
	StatusPackaging Status = "packaging"
	StatusPackaged  Status = "packaged"
	StatusDelivered Status = "delivered"
)

// Well-known flag names. Flags are independent booleans; the store enforces
// no cross-invariants between them.
const (
	FlagInspected      = "inspected"
	FlagArchived       = "archived"
	FlagStaged         = "staged"
	FlagValidated      = "validated"
	FlagConverted      = "converted"
	FlagRequested      = "requested"
	FlagDisableArchive = "disable_archive"
	FlagVisible        = "visible"
)

// Claim is the embedded lease on an entity: present iff a worker currently
// holds the exclusive right to process it.
type Claim struct {
	WorkerID  string
	ClaimedAt time.Time
}

// Active reports whether the claim is still within its lease window.
func (c *Claim) Active(now time.Time, leaseTimeout time.Duration) bool {
	if c == nil {
		return false
	}
	if leaseTimeout <= 0 {
		return true
	}
	return now.Sub(c.ClaimedAt) < leaseTimeout
}

// FailureInfo is the structured last-failure payload carried on an entity.
// It is cleared on the next successful claim.
type FailureInfo struct {
	Kind       string
	Message    string
	OccurredAt time.Time
}

// Ref is a weak typed reference to another entity or worker. Referential
// integrity is advisory; dangling refs are tolerated.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Entity is the polymorphic record shared by all kinds.
type Entity struct {
	ID        string
	Kind      Kind
	Name      string
	Status    Status
	Flags     map[string]bool
	AttrsJSON string
	Refs      []Ref
	Error     *FailureInfo
	Claim     *Claim
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Flag returns the value of a named flag, defaulting to false.
func (e *Entity) Flag(name string) bool {
	if e == nil || e.Flags == nil {
		return false
	}
	return e.Flags[name]
}

// RefID returns the id of the first reference of the given kind.
func (e *Entity) RefID(kind string) string {
	if e == nil {
		return ""
	}
	for _, ref := range e.Refs {
		if ref.Kind == kind {
			return ref.ID
		}
	}
	return ""
}

// Terminal reports whether the entity has no further legal transitions.
func (e *Entity) Terminal() bool {
	if e == nil {
		return false
	}
	return len(Successors(e.Kind, e.Status)) == 0
}

// Event is one entry in an entity's append-only history. Ordering is by
// stamp, then by insertion.
type Event struct {
	ID          int64
	EntityID    string
	Stamp       time.Time
	Description string
}

// WorkerStatus tracks liveness of a registered worker process.
type WorkerStatus string

const (
	WorkerIdle  WorkerStatus = "idle"
	WorkerBusy  WorkerStatus = "busy"
	WorkerStale WorkerStatus = "stale"
)

// Worker is a registered worker process. Workers are never hard-deleted so
// historical claim records remain resolvable; dead workers are marked stale.
type Worker struct {
	ID             string
	Name           string
	Host           string
	Service        string
	Status         WorkerStatus
	CurrentCommand string
	LastHeartbeat  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HealthSummary aggregates entity counts for diagnostic output.
type HealthSummary struct {
	Total      int
	Unclaimed  int
	Claimed    int
	Errored    int
	Terminal   int
	ByStatus   map[Status]int
	WorkerIdle int
	WorkerBusy int
	Stale      int
}
