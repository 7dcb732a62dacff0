package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/store"
)

// postingColumns are shared by staged_postings and jobs, in scan order.
const postingColumns = `title, company, company_logo_url, location, employment_type, category,
	level, description, requirements, benefits, salary, application_url,
	created_at, expires_at, is_active, featured, source, employer_id`

type scanner interface {
	Scan(dest ...any) error
}

func postingArgs(p *posting.Posting) []any {
	requirements := p.Requirements
	if requirements == nil {
		requirements = []string{}
	}
	benefits := p.Benefits
	if benefits == nil {
		benefits = []string{}
	}
	return []any{
		p.Title, p.Company, p.CompanyLogoURL, p.Location, string(p.EmploymentType), p.Category,
		string(p.Level), p.Description, requirements, benefits, p.Salary, p.ApplicationURL,
		p.CreatedAt, p.ExpiresAt, p.IsActive, p.Featured, p.Source, p.EmployerID,
	}
}

// scanPosting scans postingColumns after any leading and before any trailing destinations.
func scanPosting(row scanner, p *posting.Posting, lead []any, trail ...any) error {
	var employmentType, level string
	dest := append(lead,
		&p.Title, &p.Company, &p.CompanyLogoURL, &p.Location, &employmentType, &p.Category,
		&level, &p.Description, &p.Requirements, &p.Benefits, &p.Salary, &p.ApplicationURL,
		&p.CreatedAt, &p.ExpiresAt, &p.IsActive, &p.Featured, &p.Source, &p.EmployerID,
	)
	dest = append(dest, trail...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	p.EmploymentType = posting.EmploymentType(employmentType)
	p.Level = posting.Level(level)
	return nil
}

// -----------------------------------------------------------------------------
// Staged Posting Methods
// -----------------------------------------------------------------------------

// InsertStaged inserts every posting in one transaction.
func (db *DB) InsertStaged(ctx context.Context, postings []posting.Posting) (int, error) {
	if len(postings) == 0 {
		return 0, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i := range postings {
		batch.Queue(
			`INSERT INTO staged_postings (`+postingColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			postingArgs(&postings[i])...,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to insert staged postings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit staged postings: %w", err)
	}
	return len(postings), nil
}

// ListStaged returns all staged postings, most recently staged first.
func (db *DB) ListStaged(ctx context.Context) ([]posting.Staged, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, `+postingColumns+`
		 FROM staged_postings
		 ORDER BY staged_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged postings: %w", err)
	}
	defer rows.Close()

	var out []posting.Staged
	for rows.Next() {
		var s posting.Staged
		if err := scanPosting(rows, &s.Posting, []any{&s.ID}); err != nil {
			return nil, fmt.Errorf("failed to scan staged posting: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list staged postings: %w", err)
	}
	return out, nil
}

// GetStaged returns a staged posting, or nil when it does not exist.
func (db *DB) GetStaged(ctx context.Context, id uuid.UUID) (*posting.Staged, error) {
	var s posting.Staged
	row := db.pool.QueryRow(ctx,
		`SELECT id, `+postingColumns+` FROM staged_postings WHERE id = $1`, id)
	if err := scanPosting(row, &s.Posting, []any{&s.ID}); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get staged posting: %w", err)
	}
	return &s, nil
}

// DeleteStaged removes a staged posting. It returns store.ErrNotFound when
// no row was deleted.
func (db *DB) DeleteStaged(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM staged_postings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staged posting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// StagedKeys returns the (title, company) pair of every staged posting.
func (db *DB) StagedKeys(ctx context.Context) ([]posting.KeyPair, error) {
	return db.keys(ctx, `SELECT title, company FROM staged_postings`)
}

func (db *DB) keys(ctx context.Context, query string) ([]posting.KeyPair, error) {
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}
	defer rows.Close()

	var out []posting.KeyPair
	for rows.Next() {
		var k posting.KeyPair
		if err := rows.Scan(&k.Title, &k.Company); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}
	return out, nil
}
