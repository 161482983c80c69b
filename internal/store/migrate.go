package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ApplyMigrations runs every pending .up.sql file in migrationsDir,
// recording each applied version in the schema_migrations ledger.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			files = append(files, filepath.Join(migrationsDir, name))
		}
	}
	sort.Strings(files)

	for _, file := range files {
		version := filepath.Base(file)
		if migrated, err := IsMigrated(ctx, db, version); err != nil {
			return err
		} else if migrated {
			continue
		}

		contents, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", version, err)
		}

		if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", version, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}

	return nil
}

// RunScript executes one versioned migration script statement by
// statement, tolerating "already exists" failures so a partially applied
// script can be re-run. On success the version is recorded in the
// ledger; a version already in the ledger is a no-op. Returns the names
// of the tables the script creates and whether any work was done.
func RunScript(ctx context.Context, db *sql.DB, migrationsDir, version string) (created []string, applied bool, err error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, false, err
	}

	if migrated, err := IsMigrated(ctx, db, version); err != nil {
		return nil, false, err
	} else if migrated {
		return nil, false, nil
	}

	contents, err := os.ReadFile(filepath.Join(migrationsDir, version))
	if err != nil {
		return nil, false, fmt.Errorf("read migration %s: %w", version, err)
	}

	for _, statement := range SplitStatements(string(contents)) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return nil, false, fmt.Errorf("execute migration %s: %w", version, err)
		}
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1) ON CONFLICT (version) DO NOTHING`, version); err != nil {
		return nil, false, fmt.Errorf("record migration %s: %w", version, err)
	}

	return CreatedTables(string(contents)), true, nil
}

// Migrator binds RunScript to a database and migrations directory for
// the admin migration endpoint.
type Migrator struct {
	db  *sql.DB
	dir string
}

func NewMigrator(db *sql.DB, migrationsDir string) *Migrator {
	return &Migrator{db: db, dir: migrationsDir}
}

func (m *Migrator) Run(ctx context.Context, version string) ([]string, bool, error) {
	return RunScript(ctx, m.db, m.dir, version)
}

// SplitStatements splits a DDL script on semicolons, dropping blanks.
func SplitStatements(script string) []string {
	parts := strings.Split(script, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		statements = append(statements, trimmed)
	}
	return statements
}

var createTablePattern = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([a-zA-Z0-9_]+)"?`)

// CreatedTables lists the table names a DDL script creates, in script order.
func CreatedTables(script string) []string {
	matches := createTablePattern.FindAllStringSubmatch(script, -1)
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match[1])
	}
	return names
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

// IsMigrated reports whether a version is recorded in the ledger.
func IsMigrated(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
