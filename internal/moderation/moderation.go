// Package moderation implements the administrator actions on staged
// postings: importing one into the live jobs and rejecting one.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/apperr"
	"github.com/jonathan/jobstage/internal/events"
	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/store"
)

// Service performs import and reject against a store.Gateway.
type Service struct {
	gw         store.Gateway
	publisher  events.Publisher
	logger     *zap.Logger
	now        func() time.Time
	resetDates map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithResetDates sets the source tags whose dates restart on import.
func WithResetDates(tags map[string]bool) Option {
	return func(s *Service) { s.resetDates = tags }
}

// NewService creates a moderation Service.
func NewService(gw store.Gateway, pub events.Publisher, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		gw:         gw,
		publisher:  pub,
		logger:     logger,
		now:        time.Now,
		resetDates: map[string]bool{},
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportedEvent is published after a successful import.
type ImportedEvent struct {
	StagedID uuid.UUID `json:"stagedId"`
	JobID    uuid.UUID `json:"jobId"`
	Title    string    `json:"title"`
	Company  string    `json:"company"`
	Source   string    `json:"source"`
}

// RejectedEvent is published after a successful reject.
type RejectedEvent struct {
	StagedID uuid.UUID `json:"stagedId"`
}

// List returns the staged postings awaiting moderation.
func (s *Service) List(ctx context.Context) ([]posting.Staged, error) {
	staged, err := s.gw.ListStaged(ctx)
	if err != nil {
		return nil, apperr.Unavailable("failed to list staged postings", err)
	}
	return staged, nil
}

// Import promotes a staged posting to a live job. category overrides the
// staged category when non-empty. It fails with a NotFound error when the
// staged posting does not exist and a Conflict error when a live job already
// has the same title and company; the staged posting is untouched then.
func (s *Service) Import(ctx context.Context, id uuid.UUID, category string) (*posting.Job, error) {
	staged, err := s.gw.GetStaged(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable("failed to load staged posting", err)
	}
	if staged == nil {
		return nil, apperr.NotFound(fmt.Sprintf("staged posting %s not found", id), store.ErrNotFound)
	}

	existing, err := s.gw.FindJobByKey(ctx, staged.Title, staged.Company)
	if err != nil {
		return nil, apperr.Unavailable("failed to check live jobs", err)
	}
	if existing != nil {
		return nil, apperr.Conflict(store.ErrDuplicate.Error(), store.ErrDuplicate)
	}

	job := s.BuildJob(staged, category)
	if err := s.gw.Promote(ctx, id, job); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, apperr.Conflict(store.ErrDuplicate.Error(), err)
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound(fmt.Sprintf("staged posting %s not found", id), err)
		default:
			return nil, apperr.Internal("failed to promote staged posting", err)
		}
	}

	s.logger.Info("imported staged posting",
		zap.String("staged_id", id.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("source", job.Source))
	s.publish(ctx, events.SubjectImported, ImportedEvent{
		StagedID: id,
		JobID:    job.ID,
		Title:    job.Title,
		Company:  job.Company,
		Source:   job.Source,
	})
	return job, nil
}

// BuildJob constructs the live job for a staged posting.
func (s *Service) BuildJob(staged *posting.Staged, category string) *posting.Job {
	p := staged.Posting
	p.Requirements = append([]string(nil), staged.Requirements...)
	p.Benefits = append([]string(nil), staged.Benefits...)

	switch {
	case strings.TrimSpace(category) != "":
		p.Category = strings.TrimSpace(category)
	case p.Category == "":
		p.Category = posting.DefaultCategory
	}

	if s.resetDates[p.Source] {
		now := s.now()
		p.CreatedAt = now
		p.ExpiresAt = now.Add(posting.DefaultExpiryWindow)
	}

	p.EmployerID = nil
	p.IsActive = true
	p.Featured = false

	return &posting.Job{Posting: p, UpdatedAt: p.CreatedAt}
}

// Reject deletes a staged posting. A missing posting is a NotFound error.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.gw.DeleteStaged(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(fmt.Sprintf("staged posting %s not found", id), err)
		}
		return apperr.Unavailable("failed to delete staged posting", err)
	}

	s.logger.Info("rejected staged posting", zap.String("staged_id", id.String()))
	s.publish(ctx, events.SubjectRejected, RejectedEvent{StagedID: id})
	return nil
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), subject, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
