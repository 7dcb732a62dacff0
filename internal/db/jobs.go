package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/store"
)

// -----------------------------------------------------------------------------
// Live Job Methods
// -----------------------------------------------------------------------------

// FindJobByKey returns the live job with this title and company, or nil.
func (db *DB) FindJobByKey(ctx context.Context, title, company string) (*posting.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, `+postingColumns+`, updated_at
		 FROM jobs WHERE title = $1 AND company = $2`,
		title, company)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return j, nil
}

// GetJob returns a live job by id, or nil.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*posting.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, `+postingColumns+`, updated_at FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// LiveKeys returns the (title, company) pair of every live job.
func (db *DB) LiveKeys(ctx context.Context) ([]posting.KeyPair, error) {
	return db.keys(ctx, `SELECT title, company FROM jobs`)
}

func scanJob(row scanner) (*posting.Job, error) {
	var j posting.Job
	if err := scanPosting(row, &j.Posting, []any{&j.ID}, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// Promote moves a staged posting into jobs in one transaction. The staged
// row is locked for the duration, so two concurrent imports of the same id
// cannot both succeed. It returns store.ErrNotFound when the staged row is
// gone and store.ErrDuplicate when a live job already has the same title
// and company; in both cases nothing changes.
func (db *DB) Promote(ctx context.Context, stagedID uuid.UUID, job *posting.Job) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM staged_postings WHERE id = $1 FOR UPDATE`, stagedID).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to lock staged posting: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE title = $1 AND company = $2)`,
		job.Title, job.Company,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check live duplicate: %w", err)
	}
	if exists {
		return store.ErrDuplicate
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	args := append([]any{job.ID}, postingArgs(&job.Posting)...)
	args = append(args, job.UpdatedAt)
	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, `+postingColumns+`, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		args...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM staged_postings WHERE id = $1`, stagedID); err != nil {
		return fmt.Errorf("failed to delete staged posting: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to commit promotion: %w", err)
	}
	return nil
}
