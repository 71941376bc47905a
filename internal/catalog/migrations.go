package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// schemaRevision is one embedded DDL file. Files are named
// NNNN_description.sql and applied in numeric order.
type schemaRevision struct {
	number int
	name   string
	ddl    string
}

func schemaRevisions() ([]schemaRevision, error) {
	entries, err := schemaFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	revisions := make([]schemaRevision, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		prefix, _, found := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		if !found {
			return nil, fmt.Errorf("schema file %s: missing numeric prefix", name)
		}
		number, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("schema file %s: %w", name, err)
		}
		data, err := schemaFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", name, err)
		}
		revisions = append(revisions, schemaRevision{number: number, name: name, ddl: string(data)})
	}
	sort.Slice(revisions, func(i, j int) bool { return revisions[i].number < revisions[j].number })
	return revisions, nil
}

// applyMigrations brings the database up to the newest embedded revision.
// The applied revision number lives in the SQLite user_version header
// field, which commits atomically with the DDL it describes.
func (s *Store) applyMigrations(ctx context.Context) error {
	revisions, err := schemaRevisions()
	if err != nil {
		return err
	}

	return s.runTx(ctx, "migration", func(tx *sql.Tx) error {
		var current int
		if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
			return fmt.Errorf("read schema revision: %w", err)
		}
		applied := current
		for _, rev := range revisions {
			if rev.number <= current {
				continue
			}
			if _, err := tx.ExecContext(ctx, rev.ddl); err != nil {
				return fmt.Errorf("apply %s: %w", rev.name, err)
			}
			applied = rev.number
		}
		if applied == current {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(applied)); err != nil {
			return fmt.Errorf("record schema revision: %w", err)
		}
		return nil
	})
}
