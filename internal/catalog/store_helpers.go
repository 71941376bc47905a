package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const entityColumns = "id, kind, name, status, flags_json, attrs_json, refs_json, error_kind, error_message, error_at, claimed_by, claimed_at, created_at, updated_at"

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*Entity, error) {
	var (
		id         string
		kindStr    string
		name       sql.NullString
		statusStr  string
		flagsJSON  sql.NullString
		attrsJSON  sql.NullString
		refsJSON   sql.NullString
		errKind    sql.NullString
		errMessage sql.NullString
		errAtRaw   sql.NullString
		claimedBy  sql.NullString
		claimedRaw sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kindStr,
		&name,
		&statusStr,
		&flagsJSON,
		&attrsJSON,
		&refsJSON,
		&errKind,
		&errMessage,
		&errAtRaw,
		&claimedBy,
		&claimedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entity := &Entity{
		ID:        id,
		Kind:      Kind(kindStr),
		Name:      name.String,
		Status:    Status(statusStr),
		AttrsJSON: attrsJSON.String,
	}

	if flagsJSON.Valid && flagsJSON.String != "" {
		flags := make(map[string]bool)
		if err := json.Unmarshal([]byte(flagsJSON.String), &flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
		entity.Flags = flags
	}
	if refsJSON.Valid && refsJSON.String != "" {
		var refs []Ref
		if err := json.Unmarshal([]byte(refsJSON.String), &refs); err != nil {
			return nil, fmt.Errorf("decode refs: %w", err)
		}
		entity.Refs = refs
	}
	if errKind.Valid || errMessage.Valid {
		failure := &FailureInfo{Kind: errKind.String, Message: errMessage.String}
		if at, err := parseTimeString(errAtRaw.String); err == nil {
			failure.OccurredAt = at
		}
		entity.Error = failure
	}
	if claimedBy.Valid && claimedBy.String != "" {
		claim := &Claim{WorkerID: claimedBy.String}
		if at, err := parseTimeString(claimedRaw.String); err == nil {
			claim.ClaimedAt = at
		}
		entity.Claim = claim
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entity.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entity.UpdatedAt = updated
	}
	return entity, nil
}

const workerColumns = "id, name, host, service, status, current_command, last_heartbeat, created_at, updated_at"

func scanWorker(scanner interface{ Scan(dest ...any) error }) (*Worker, error) {
	var (
		id           string
		name         string
		host         string
		service      sql.NullString
		statusStr    string
		command      sql.NullString
		heartbeatRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&host,
		&service,
		&statusStr,
		&command,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	worker := &Worker{
		ID:             id,
		Name:           name,
		Host:           host,
		Service:        service.String,
		Status:         WorkerStatus(statusStr),
		CurrentCommand: command.String,
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			worker.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		worker.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		worker.UpdatedAt = updated
	}
	return worker, nil
}

func marshalFlags(flags map[string]bool) (any, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("encode flags: %w", err)
	}
	return string(data), nil
}

func marshalRefs(refs []Ref) (any, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode refs: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func trimLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
