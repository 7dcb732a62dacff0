// Package store defines the staging and live store gateways used by the
// pipeline and by moderation, and an in-memory implementation of both.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jonathan/jobstage/internal/posting"
)

var (
	// ErrNotFound is returned when a staged posting or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when the live store already has the (title, company) pair.
	ErrDuplicate = errors.New("duplicate job already exists")
)

// Staging is the moderation-pending store.
type Staging interface {
	// InsertStaged writes a batch in one call and returns how many were stored.
	InsertStaged(ctx context.Context, postings []posting.Posting) (int, error)
	ListStaged(ctx context.Context) ([]posting.Staged, error)
	// GetStaged returns nil, nil when the posting does not exist.
	GetStaged(ctx context.Context, id uuid.UUID) (*posting.Staged, error)
	// DeleteStaged returns ErrNotFound when nothing was deleted.
	DeleteStaged(ctx context.Context, id uuid.UUID) error
	StagedKeys(ctx context.Context) ([]posting.KeyPair, error)
}

// Live is the store of published jobs.
type Live interface {
	// FindJobByKey returns nil, nil when no job has the pair.
	FindJobByKey(ctx context.Context, title, company string) (*posting.Job, error)
	LiveKeys(ctx context.Context) ([]posting.KeyPair, error)
}

// Promoter moves a staged posting into the live store.
type Promoter interface {
	// Promote inserts job and deletes the staged posting as one unit. It
	// returns ErrNotFound when the staged posting is gone and ErrDuplicate
	// when the live store already has job's pair; in both cases nothing changes.
	// job.ID is assigned by the store when zero.
	Promote(ctx context.Context, stagedID uuid.UUID, job *posting.Job) error
}

// Gateway is everything the pipeline and moderation need from storage.
type Gateway interface {
	Staging
	Live
	Promoter
}
