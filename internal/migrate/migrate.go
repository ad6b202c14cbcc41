// Package migrate applies the SQL migrations in order and records them in
// a schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// lockID serializes concurrent migrators through a Postgres advisory lock.
const lockID int64 = 7310021

// ErrNoMigrations is returned when the source holds no migration files.
var ErrNoMigrations = errors.New("no migrations found")

// Migration is one versioned schema change.
type Migration struct {
	Version string // numeric prefix, e.g. "000001"
	Name    string
	Up      string
	Down    string
}

// Load reads NNNNNN_name.up.sql / NNNNNN_name.down.sql pairs from fsys, sorted by version.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		base, direction, ok := splitDirection(name)
		if !ok {
			return nil, fmt.Errorf("migration %s: expected .up.sql or .down.sql suffix", name)
		}
		version, label, ok := strings.Cut(base, "_")
		if !ok || version == "" {
			return nil, fmt.Errorf("migration %s: expected NNNNNN_name prefix", name)
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: label}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	if len(byVersion) == 0 {
		return nil, ErrNoMigrations
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s_%s has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func splitDirection(name string) (string, string, bool) {
	switch {
	case strings.HasSuffix(name, ".up.sql"):
		return strings.TrimSuffix(name, ".up.sql"), "up", true
	case strings.HasSuffix(name, ".down.sql"):
		return strings.TrimSuffix(name, ".down.sql"), "down", true
	}
	return "", "", false
}

// Migrator applies migrations to a database/sql handle opened with the lib/pq driver.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	logger     *slog.Logger
}

// New creates a Migrator.
func New(db *sql.DB, migrations []Migration, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: migrations,
		logger:     logger.With("component", "migrate"),
	}
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	var applied int
	err := m.locked(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for _, mig := range m.migrations {
			if done[mig.Version] {
				continue
			}
			if err := m.apply(ctx, conn, mig.Version, mig.Name, mig.Up, true); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// Down reverts up to steps applied migrations, newest first.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	var reverted int
	err := m.locked(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for i := len(m.migrations) - 1; i >= 0 && reverted < steps; i-- {
			mig := m.migrations[i]
			if !done[mig.Version] {
				continue
			}
			if mig.Down == "" {
				return fmt.Errorf("migration %s_%s has no down script", mig.Version, mig.Name)
			}
			if err := m.apply(ctx, conn, mig.Version, mig.Name, mig.Down, false); err != nil {
				return err
			}
			reverted++
		}
		return nil
	})
	return reverted, err
}

func (m *Migrator) locked(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	return fn(conn)
}

func (m *Migrator) apply(ctx context.Context, conn *sql.Conn, version, name, script string, up bool) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("migration %s_%s: %s", version, name, describe(err))
	}

	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", version, err)
	}

	direction := "down"
	if up {
		direction = "up"
	}
	m.logger.Info("migration applied", "version", version, "name", name, "direction", direction)
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

// describe adds Postgres diagnostics to driver errors.
func describe(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		msg := fmt.Sprintf("%s (SQLSTATE %s)", pqErr.Message, pqErr.Code)
		if pqErr.Position != "" {
			msg += " at position " + pqErr.Position
		}
		return msg
	}
	return err.Error()
}
