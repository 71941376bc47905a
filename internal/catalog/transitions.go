package catalog

// statusGraphs declares the legal successor statuses per kind. A transition
// is legal only when the target appears in the current status's successor
// list; everything else fails with ErrInvalidTransition.
var statusGraphs = map[Kind]map[Status][]Status{
	KindDataset: {
		StatusNew:        {StatusInspecting},
		StatusInspecting: {StatusInspected},
		StatusInspected:  {StatusStaging},
		StatusStaging:    {StatusStaged},
		StatusStaged:     {StatusValidating},
		StatusValidating: {StatusValidated},
		StatusValidated:  {StatusConverting},
		StatusConverting: {StatusConverted},
		StatusConverted:  {StatusArchiving},
		StatusArchiving:  {StatusArchived},
		StatusArchived:   {},
	},
	// Products cycle between cold storage and the staging area: a staged
	// product can be re-archived once nothing references it, and an
	// archived product is staged again on request.
	KindDataProduct: {
		StatusRegistered: {StatusArchiving},
		StatusArchiving:  {StatusArchived},
		StatusArchived:   {StatusStaging},
		StatusStaging:    {StatusStaged},
		StatusStaged:     {StatusArchiving},
	},
	KindConversion: {
		StatusPending:    {StatusStaging},
		StatusStaging:    {StatusStaged},
		StatusStaged:     {StatusConverting},
		StatusConverting: {StatusConverted},
		StatusConverted:  {},
	},
	KindUpload: {
		StatusNew:       {StatusReceiving},
		StatusReceiving: {StatusReceived},
		StatusReceived:  {StatusImporting},
		StatusImporting: {StatusImported},
		StatusImported:  {},
	},
	KindDownload: {
		StatusNew:       {StatusPackaging},
		StatusPackaging: {StatusPackaged},
		StatusPackaged:  {StatusDelivered},
		StatusDelivered: {},
	},
	// Session track staging can rerun whenever the track list changes.
	KindSession: {
		StatusNew:     {StatusStaging},
		StatusStaging: {StatusStaged},
		StatusStaged:  {StatusStaging},
	},
}

// initialStatuses is the unclaimed status a freshly created entity starts in.
var initialStatuses = map[Kind]Status{
	KindDataset:     StatusNew,
	KindDataProduct: StatusRegistered,
	KindConversion:  StatusPending,
	KindUpload:      StatusNew,
	KindDownload:    StatusNew,
	KindSession:     StatusNew,
}

// InitialStatus returns the starting status for a kind.
func InitialStatus(kind Kind) Status {
	return initialStatuses[kind]
}

// Successors returns the legal next statuses from the given position.
func Successors(kind Kind, status Status) []Status {
	graph, ok := statusGraphs[kind]
	if !ok {
		return nil
	}
	next, ok := graph[status]
	if !ok {
		return nil
	}
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}

// CanTransition reports whether moving from one status to another is legal
// for the kind. A same-status "transition" is not legal here; idempotent
// re-delivery is handled by the store, which treats it as a no-op success.
func CanTransition(kind Kind, from, to Status) bool {
	graph, ok := statusGraphs[kind]
	if !ok {
		return false
	}
	for _, next := range graph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// KnownStatus reports whether the status exists in the kind's graph.
func KnownStatus(kind Kind, status Status) bool {
	graph, ok := statusGraphs[kind]
	if !ok {
		return false
	}
	_, ok = graph[status]
	return ok
}

// Statuses returns every status in the kind's graph in walk order from the
// initial status. Cycles are visited once.
func Statuses(kind Kind) []Status {
	graph, ok := statusGraphs[kind]
	if !ok {
		return nil
	}
	ordered := make([]Status, 0, len(graph))
	seen := make(map[Status]struct{}, len(graph))
	var walk func(Status)
	walk = func(status Status) {
		if _, dup := seen[status]; dup {
			return
		}
		seen[status] = struct{}{}
		ordered = append(ordered, status)
		for _, next := range graph[status] {
			walk(next)
		}
	}
	walk(InitialStatus(kind))
	return ordered
}

// ParseStatus converts a string into a status known to the kind's graph.
func ParseStatus(kind Kind, value string) (Status, bool) {
	normalized := Status(trimLower(value))
	if normalized == "" {
		return "", false
	}
	if !KnownStatus(kind, normalized) {
		return "", false
	}
	return normalized, true
}
