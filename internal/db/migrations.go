package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Migrations lists the schema in version order.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "create staged_postings table",
		Up: `
			CREATE TABLE IF NOT EXISTS staged_postings (
				id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				title            TEXT NOT NULL,
				company          TEXT NOT NULL,
				company_logo_url TEXT NOT NULL DEFAULT '',
				location         TEXT NOT NULL DEFAULT '',
				employment_type  TEXT NOT NULL,
				category         TEXT NOT NULL DEFAULT '',
				level            TEXT NOT NULL,
				description      TEXT NOT NULL DEFAULT '',
				requirements     TEXT[] NOT NULL DEFAULT '{}',
				benefits         TEXT[] NOT NULL DEFAULT '{}',
				salary           TEXT NOT NULL DEFAULT '',
				application_url  TEXT NOT NULL,
				created_at       TIMESTAMPTZ NOT NULL,
				expires_at       TIMESTAMPTZ NOT NULL,
				is_active        BOOLEAN NOT NULL DEFAULT TRUE,
				featured         BOOLEAN NOT NULL DEFAULT FALSE,
				source           TEXT NOT NULL,
				employer_id      UUID,
				staged_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (expires_at > created_at)
			);
			CREATE INDEX IF NOT EXISTS idx_staged_postings_key ON staged_postings (title, company);
			CREATE INDEX IF NOT EXISTS idx_staged_postings_staged_at ON staged_postings (staged_at DESC);
		`,
		Down: `DROP TABLE IF EXISTS staged_postings`,
	},
	{
		Version:     2,
		Description: "create jobs table",
		Up: `
			CREATE TABLE IF NOT EXISTS jobs (
				id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				title            TEXT NOT NULL,
				company          TEXT NOT NULL,
				company_logo_url TEXT NOT NULL DEFAULT '',
				location         TEXT NOT NULL DEFAULT '',
				employment_type  TEXT NOT NULL,
				category         TEXT NOT NULL DEFAULT '',
				level            TEXT NOT NULL,
				description      TEXT NOT NULL DEFAULT '',
				requirements     TEXT[] NOT NULL DEFAULT '{}',
				benefits         TEXT[] NOT NULL DEFAULT '{}',
				salary           TEXT NOT NULL DEFAULT '',
				application_url  TEXT NOT NULL,
				created_at       TIMESTAMPTZ NOT NULL,
				updated_at       TIMESTAMPTZ NOT NULL,
				expires_at       TIMESTAMPTZ NOT NULL,
				is_active        BOOLEAN NOT NULL DEFAULT TRUE,
				featured         BOOLEAN NOT NULL DEFAULT FALSE,
				source           TEXT NOT NULL DEFAULT '',
				employer_id      UUID
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_key ON jobs (title, company);
		`,
		Down: `DROP TABLE IF EXISTS jobs`,
	},
}

// Migrator applies Migrations and records them in schema_migrations.
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a Migrator.
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Applied returns the applied versions and when they were applied.
func (m *Migrator) Applied(ctx context.Context) (map[int]time.Time, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.pool.Query(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return applied, nil
}

// Up applies every pending migration in version order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range Pending(Migrations, applied) {
		if err := m.apply(ctx, mig); err != nil {
			return count, err
		}
		m.logger.Info("applied migration", zap.Int("version", mig.Version), zap.String("description", mig.Description))
		count++
	}
	return count, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, mig.Up); err != nil {
		return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		mig.Version, mig.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", mig.Version, err)
	}
	return nil
}

// Down rolls back the most recently applied migration. It returns false when
// nothing is applied.
func (m *Migrator) Down(ctx context.Context) (bool, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return false, err
	}
	latest := -1
	for _, mig := range Migrations {
		if _, ok := applied[mig.Version]; ok && mig.Version > latest {
			latest = mig.Version
		}
	}
	if latest < 0 {
		return false, nil
	}

	for _, mig := range Migrations {
		if mig.Version != latest {
			continue
		}
		if _, err := m.db.pool.Exec(ctx, mig.Down); err != nil {
			return false, fmt.Errorf("failed to rollback migration %d: %w", mig.Version, err)
		}
		if _, err := m.db.pool.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version); err != nil {
			return false, fmt.Errorf("failed to remove migration record %d: %w", mig.Version, err)
		}
		m.logger.Info("rolled back migration", zap.Int("version", mig.Version))
	}
	return true, nil
}

// Pending returns the migrations not in applied, sorted by version.
func Pending(all []Migration, applied map[int]time.Time) []Migration {
	var out []Migration
	for _, mig := range all {
		if _, ok := applied[mig.Version]; !ok {
			out = append(out, mig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}
