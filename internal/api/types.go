package api

import (
	"encoding/json"
	"sort"
	"time"

	"helix/internal/catalog"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// EntitySummary is the transport representation of a catalog entity.
type EntitySummary struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name,omitempty"`
	Status    string          `json:"status"`
	Flags     map[string]bool `json:"flags,omitempty"`
	ClaimedBy string          `json:"claimedBy,omitempty"`
	ClaimedAt string          `json:"claimedAt,omitempty"`
	Error     *FailureView    `json:"error,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

// EntityDetail extends the summary with references and the kind payload.
type EntityDetail struct {
	EntitySummary
	Refs  []catalog.Ref   `json:"refs,omitempty"`
	Attrs json.RawMessage `json:"attrs,omitempty"`
}

// FailureView is the wire form of a recorded failure.
type FailureView struct {
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message"`
	OccurredAt string `json:"occurredAt,omitempty"`
}

// EventView is one history entry.
type EventView struct {
	ID          int64  `json:"id"`
	EntityID    string `json:"entityId"`
	Stamp       string `json:"stamp"`
	Description string `json:"description"`
}

// WorkerView is the transport representation of a worker record.
type WorkerView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Host           string `json:"host"`
	Service        string `json:"service,omitempty"`
	Status         string `json:"status"`
	CurrentCommand string `json:"currentCommand,omitempty"`
	LastHeartbeat  string `json:"lastHeartbeat,omitempty"`
}

// StatsResponse provides normalized per-status counts for one kind.
type StatsResponse struct {
	Kind   string         `json:"kind"`
	Counts map[string]int `json:"counts"`
}

// ListResponse wraps a collection of entities.
type ListResponse struct {
	Entities []EntitySummary `json:"entities"`
}

// HistoryResponse wraps one page of an entity's event history.
type HistoryResponse struct {
	Events []EventView `json:"events"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// WorkersResponse wraps the registered worker list.
type WorkersResponse struct {
	Workers []WorkerView `json:"workers"`
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromEntity converts a catalog entity into its summary DTO.
func FromEntity(entity *catalog.Entity) EntitySummary {
	summary := EntitySummary{
		ID:        entity.ID,
		Kind:      string(entity.Kind),
		Name:      entity.Name,
		Status:    string(entity.Status),
		Flags:     entity.Flags,
		CreatedAt: formatStamp(entity.CreatedAt),
		UpdatedAt: formatStamp(entity.UpdatedAt),
	}
	if entity.Claim != nil {
		summary.ClaimedBy = entity.Claim.WorkerID
		summary.ClaimedAt = formatStamp(entity.Claim.ClaimedAt)
	}
	if entity.Error != nil {
		summary.Error = &FailureView{
			Kind:       entity.Error.Kind,
			Message:    entity.Error.Message,
			OccurredAt: formatStamp(entity.Error.OccurredAt),
		}
	}
	return summary
}

// FromEntities converts a slice of entities preserving order.
func FromEntities(entities []*catalog.Entity) []EntitySummary {
	summaries := make([]EntitySummary, 0, len(entities))
	for _, entity := range entities {
		summaries = append(summaries, FromEntity(entity))
	}
	return summaries
}

// DetailFromEntity converts an entity including refs and the raw payload.
func DetailFromEntity(entity *catalog.Entity) EntityDetail {
	detail := EntityDetail{
		EntitySummary: FromEntity(entity),
		Refs:          entity.Refs,
	}
	if entity.AttrsJSON != "" {
		detail.Attrs = json.RawMessage(entity.AttrsJSON)
	}
	return detail
}

// FromEvents converts history entries preserving order.
func FromEvents(events []catalog.Event) []EventView {
	views := make([]EventView, 0, len(events))
	for _, event := range events {
		views = append(views, EventView{
			ID:          event.ID,
			EntityID:    event.EntityID,
			Stamp:       formatStamp(event.Stamp),
			Description: event.Description,
		})
	}
	return views
}

// FromWorkers converts worker records preserving order.
func FromWorkers(workers []*catalog.Worker) []WorkerView {
	views := make([]WorkerView, 0, len(workers))
	for _, worker := range workers {
		view := WorkerView{
			ID:             worker.ID,
			Name:           worker.Name,
			Host:           worker.Host,
			Service:        worker.Service,
			Status:         string(worker.Status),
			CurrentCommand: worker.CurrentCommand,
		}
		if worker.LastHeartbeat != nil {
			view.LastHeartbeat = formatStamp(*worker.LastHeartbeat)
		}
		views = append(views, view)
	}
	return views
}

// MergeStats normalizes status counts into string keys.
func MergeStats(stats map[catalog.Status]int) map[string]int {
	merged := make(map[string]int, len(stats))
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// SortedStatuses returns stat keys in stable order for rendering.
func SortedStatuses(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
