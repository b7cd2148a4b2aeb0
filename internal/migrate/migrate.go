// Package migrate applies the report-store schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Run applies pending migrations found under internal/migrate/sql in
// lexicographic order. Each file runs as one statement batch, so the DSN
// should include multiStatements=true. File names carry a numeric prefix,
// e.g. 0001_reports.sql.
func Run(ctx context.Context, dsn string, log *slog.Logger) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		return err
	}

	const ddl = `CREATE TABLE IF NOT EXISTS worklog_schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at DATETIME(6) NOT NULL
    ) ENGINE=InnoDB;`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	files, err := fs.Glob(migrationsFS, "sql/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		if err := applyFile(ctx, db, f, applied, log); err != nil {
			return err
		}
	}
	return nil
}

// applyFile runs one migration file unless its version is already recorded.
func applyFile(ctx context.Context, db *sql.DB, file string, applied map[int]bool, log *slog.Logger) error {
	base := filepath.Base(file)
	i := strings.IndexByte(base, '_')
	if i <= 0 {
		return fmt.Errorf("migration %q: missing numeric prefix", base)
	}
	version, err := strconv.Atoi(base[:i])
	if err != nil {
		return fmt.Errorf("migration %q: %w", base, err)
	}
	if applied[version] {
		log.Debug("migration already applied", slog.Int("version", version))
		return nil
	}

	body, err := fs.ReadFile(migrationsFS, file)
	if err != nil {
		return err
	}
	log.Info("applying migration", slog.Int("version", version), slog.String("file", base))
	if _, err := db.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("applying %s: %w", base, err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO worklog_schema_migrations(version, applied_at) VALUES(?, ?)",
		version, time.Now().UTC())
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM worklog_schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		m[v] = true
	}
	return m, rows.Err()
}
