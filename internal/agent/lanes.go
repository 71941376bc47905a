package agent

import (
	"helix/internal/catalog"
)

// Stage is one unit of claimable work within a lane. Entities resting at
// one of the claim statuses are eligible; a claimed entity advances to the
// working status, and a successful release moves it to the done status and
// merges the stage's flags.
type Stage struct {
	Name          string
	ClaimStatuses []catalog.Status
	// WorkingStatus is the in-progress status entered right after the
	// claim. Empty means the stage completes in a single transition.
	WorkingStatus catalog.Status
	DoneStatus    catalog.Status
	SetFlags      map[string]bool
	RequireFlags  []string
	ExcludeFlags  []string
}

// EligibleStatuses returns the statuses the stage polls for: the claim
// statuses plus the working status, so entities parked mid-stage by a
// failure release or a stolen lease are picked up again.
func (s Stage) EligibleStatuses() []catalog.Status {
	if s.WorkingStatus == "" {
		return s.ClaimStatuses
	}
	statuses := make([]catalog.Status, 0, len(s.ClaimStatuses)+1)
	statuses = append(statuses, s.ClaimStatuses...)
	statuses = append(statuses, s.WorkingStatus)
	return statuses
}

// Lane pairs an entity kind with its ordered stages. Each lane runs as one
// goroutine; stages earlier in the slice are polled first, so entities
// closer to the start of their lifecycle take priority.
type Lane struct {
	Kind   catalog.Kind
	Stages []Stage
}

// DefaultLanes returns the full lifecycle lane set, one lane per kind.
func DefaultLanes() []Lane {
	return []Lane{
		{
			Kind: catalog.KindDataset,
			Stages: []Stage{
				{
					Name:          "inspect",
					ClaimStatuses: []catalog.Status{catalog.StatusNew},
					WorkingStatus: catalog.StatusInspecting,
					DoneStatus:    catalog.StatusInspected,
					SetFlags:      map[string]bool{catalog.FlagInspected: true},
				},
				{
					Name:          "stage",
					ClaimStatuses: []catalog.Status{catalog.StatusInspected},
					WorkingStatus: catalog.StatusStaging,
					DoneStatus:    catalog.StatusStaged,
					SetFlags:      map[string]bool{catalog.FlagStaged: true},
				},
				{
					Name:          "validate",
					ClaimStatuses: []catalog.Status{catalog.StatusStaged},
					WorkingStatus: catalog.StatusValidating,
					DoneStatus:    catalog.StatusValidated,
					SetFlags:      map[string]bool{catalog.FlagValidated: true},
				},
				{
					Name:          "convert",
					ClaimStatuses: []catalog.Status{catalog.StatusValidated},
					WorkingStatus: catalog.StatusConverting,
					DoneStatus:    catalog.StatusConverted,
					SetFlags:      map[string]bool{catalog.FlagConverted: true},
				},
				{
					Name:          "archive",
					ClaimStatuses: []catalog.Status{catalog.StatusConverted},
					WorkingStatus: catalog.StatusArchiving,
					DoneStatus:    catalog.StatusArchived,
					SetFlags:      map[string]bool{catalog.FlagArchived: true},
					ExcludeFlags:  []string{catalog.FlagDisableArchive},
				},
			},
		},
		{
			Kind: catalog.KindDataProduct,
			Stages: []Stage{
				{
					Name:          "archive",
					ClaimStatuses: []catalog.Status{catalog.StatusRegistered, catalog.StatusStaged},
					WorkingStatus: catalog.StatusArchiving,
					DoneStatus:    catalog.StatusArchived,
					SetFlags:      map[string]bool{catalog.FlagArchived: true},
					ExcludeFlags:  []string{catalog.FlagDisableArchive},
				},
				{
					Name:          "stage",
					ClaimStatuses: []catalog.Status{catalog.StatusArchived},
					WorkingStatus: catalog.StatusStaging,
					DoneStatus:    catalog.StatusStaged,
					SetFlags:      map[string]bool{catalog.FlagStaged: true},
					RequireFlags:  []string{catalog.FlagRequested},
				},
			},
		},
		{
			Kind: catalog.KindConversion,
			Stages: []Stage{
				{
					Name:          "stage",
					ClaimStatuses: []catalog.Status{catalog.StatusPending},
					WorkingStatus: catalog.StatusStaging,
					DoneStatus:    catalog.StatusStaged,
					SetFlags:      map[string]bool{catalog.FlagStaged: true},
				},
				{
					Name:          "convert",
					ClaimStatuses: []catalog.Status{catalog.StatusStaged},
					WorkingStatus: catalog.StatusConverting,
					DoneStatus:    catalog.StatusConverted,
					SetFlags:      map[string]bool{catalog.FlagConverted: true},
				},
			},
		},
		{
			Kind: catalog.KindUpload,
			Stages: []Stage{
				{
					Name:          "receive",
					ClaimStatuses: []catalog.Status{catalog.StatusNew},
					WorkingStatus: catalog.StatusReceiving,
					DoneStatus:    catalog.StatusReceived,
				},
				{
					Name:          "import",
					ClaimStatuses: []catalog.Status{catalog.StatusReceived},
					WorkingStatus: catalog.StatusImporting,
					DoneStatus:    catalog.StatusImported,
				},
			},
		},
		{
			Kind: catalog.KindDownload,
			Stages: []Stage{
				{
					Name:          "package",
					ClaimStatuses: []catalog.Status{catalog.StatusNew},
					WorkingStatus: catalog.StatusPackaging,
					DoneStatus:    catalog.StatusPackaged,
				},
				{
					Name:          "deliver",
					ClaimStatuses: []catalog.Status{catalog.StatusPackaged},
					DoneStatus:    catalog.StatusDelivered,
				},
			},
		},
		{
			Kind: catalog.KindSession,
			Stages: []Stage{
				{
					Name:          "stage",
					ClaimStatuses: []catalog.Status{catalog.StatusNew},
					WorkingStatus: catalog.StatusStaging,
					DoneStatus:    catalog.StatusStaged,
					SetFlags:      map[string]bool{catalog.FlagStaged: true},
				},
				{
					Name:          "restage",
					ClaimStatuses: []catalog.Status{catalog.StatusStaged},
					WorkingStatus: catalog.StatusStaging,
					DoneStatus:    catalog.StatusStaged,
					RequireFlags:  []string{catalog.FlagRequested},
					SetFlags:      map[string]bool{catalog.FlagRequested: false},
				},
			},
		},
	}
}

// LanesForKinds filters the default lane set to the configured kinds. An
// empty list keeps every lane.
func LanesForKinds(kinds []string) []Lane {
	all := DefaultLanes()
	if len(kinds) == 0 {
		return all
	}
	want := make(map[catalog.Kind]bool, len(kinds))
	for _, raw := range kinds {
		if kind, ok := catalog.ParseKind(raw); ok {
			want[kind] = true
		}
	}
	lanes := make([]Lane, 0, len(all))
	for _, lane := range all {
		if want[lane.Kind] {
			lanes = append(lanes, lane)
		}
	}
	return lanes
}
