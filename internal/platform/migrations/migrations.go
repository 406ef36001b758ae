// Package migrations applies the platform's schema in order at service
// startup.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed files/*.sql
var files embed.FS

// Apply executes every embedded migration file against db in filename
// order. It is not idempotent — callers run it once against a fresh
// database, or pair it with golang-migrate's schema_migrations tracking
// via cmd/migrate for repeated deploys.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir("files")
	if err != nil {
		return fmt.Errorf("migrations: read embedded files: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		stmt, err := files.ReadFile("files/" + name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return nil
}
