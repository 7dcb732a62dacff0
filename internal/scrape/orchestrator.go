// Package scrape runs a source end to end: listing fetch, candidate dedup,
// rate-limited detail fetches, extraction, and a single batch insert into
// the staging store.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobstage/internal/apperr"
	"github.com/jonathan/jobstage/internal/dedup"
	"github.com/jonathan/jobstage/internal/events"
	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/sources"
)

const (
	// DefaultDetailDelay is the pause between consecutive detail fetches.
	DefaultDetailDelay = time.Second
	// DefaultDetailTimeout bounds a single detail fetch.
	DefaultDetailTimeout = 30 * time.Second
)

// Store is what a run needs from persistence.
type Store interface {
	StagedKeys(ctx context.Context) ([]posting.KeyPair, error)
	LiveKeys(ctx context.Context) ([]posting.KeyPair, error)
	InsertStaged(ctx context.Context, postings []posting.Posting) (int, error)
}

// Options tunes an Orchestrator. Zero values fall back to defaults.
type Options struct {
	DetailDelay   time.Duration
	DetailTimeout time.Duration
	Now           func() time.Time
	OnProgress    ProgressCallback
}

// Orchestrator drives scrape runs.
type Orchestrator struct {
	fetchers  fetch.Provider
	store     Store
	publisher events.Publisher
	logger    *zap.Logger

	delay      time.Duration
	timeout    time.Duration
	now        func() time.Time
	onProgress ProgressCallback
}

// New creates an Orchestrator. A negative DetailDelay disables the pause.
func New(fetchers fetch.Provider, st Store, pub events.Publisher, logger *zap.Logger, opts Options) *Orchestrator {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		fetchers:   fetchers,
		store:      st,
		publisher:  pub,
		logger:     logger,
		delay:      opts.DetailDelay,
		timeout:    opts.DetailTimeout,
		now:        opts.Now,
		onProgress: opts.OnProgress,
	}
	if o.delay == 0 {
		o.delay = DefaultDetailDelay
	}
	if o.timeout <= 0 {
		o.timeout = DefaultDetailTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// WithProgress returns a copy of o that reports progress to cb instead.
func (o *Orchestrator) WithProgress(cb ProgressCallback) *Orchestrator {
	c := *o
	c.onProgress = cb
	return &c
}

// Run scrapes one source. The returned report is never nil. A listing or
// key-loading failure aborts the run before anything is staged; individual
// candidate failures are counted and skipped. When ctx is cancelled between
// candidates, the postings gathered so far are still persisted and the
// report is marked Cancelled.
func (o *Orchestrator) Run(ctx context.Context, src sources.Source) (*Report, error) {
	r := &run{
		o:   o,
		src: src,
		report: &Report{
			RunID:     uuid.New(),
			Source:    src.Tag(),
			State:     StateIdle,
			StartedAt: o.now(),
		},
	}
	r.logger = o.logger.With(zap.String("source", src.Tag()), zap.String("run_id", r.report.RunID.String()))
	r.logger.Info("scrape run started")

	err := r.execute(ctx)
	r.report.FinishedAt = o.now()
	if err != nil {
		r.report.Error = err.Error()
		r.transition(StateFailed, err.Error())
		r.logger.Error("scrape run failed", zap.Error(err))
		return r.report, err
	}

	r.transition(StateDone, "")
	r.logger.Info("scrape run finished",
		zap.Int("candidates", r.report.Candidates),
		zap.Int("fetched", r.report.Fetched),
		zap.Int("extracted", r.report.Extracted),
		zap.Int("skipped", r.report.Skipped),
		zap.Int("failed", r.report.Failed),
		zap.Int("staged", r.report.Staged),
		zap.Bool("cancelled", r.report.Cancelled),
		zap.Duration("duration", r.report.Duration()),
	)
	if err := o.publisher.Publish(context.WithoutCancel(ctx), events.SubjectStaged, r.report); err != nil {
		r.logger.Warn("failed to publish run report", zap.Error(err))
	}
	return r.report, nil
}

// RunAll runs each source concurrently and independently. One source failing
// does not stop the others. Reports are returned in the order of srcs.
func (o *Orchestrator) RunAll(ctx context.Context, srcs []sources.Source) ([]*Report, error) {
	reports := make([]*Report, len(srcs))
	errs := make([]error, len(srcs))

	var g errgroup.Group
	for i, src := range srcs {
		g.Go(func() error {
			reports[i], errs[i] = o.Run(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return reports, errors.Join(errs...)
}

type run struct {
	o      *Orchestrator
	src    sources.Source
	report *Report
	logger *zap.Logger

	session fetch.Session
	keys    *dedup.Keys
	batch   []posting.Posting
}

func (r *run) execute(ctx context.Context) error {
	r.transition(StateFetchingListing, "")
	session, err := r.o.fetchers.Open(ctx, r.src.Strategy())
	if err != nil {
		return apperr.Unavailable(fmt.Sprintf("failed to open %s session", r.src.Strategy()), err)
	}
	r.session = session
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("failed to close fetch session", zap.Error(err))
		}
	}()

	listing, err := session.Fetch(ctx, r.src.ListingRequest())
	if err != nil {
		return apperr.Unavailable(fmt.Sprintf("failed to fetch %s listing", r.src.Tag()), err)
	}

	if err := r.loadKeys(ctx); err != nil {
		return apperr.Unavailable("failed to load dedup keys", err)
	}

	r.transition(StateExtractingCandidates, "")
	for c := range r.src.ExtractCandidates(listing) {
		if ctx.Err() != nil {
			r.report.Cancelled = true
			break
		}
		r.report.Candidates++

		r.transition(StateCheckingDedup, c.DetailURL)
		if r.keys.ShouldSkip(c.Title, c.CompanyHint) {
			r.report.Skipped++
			r.outcome(c, OutcomeDuplicate, "already staged or imported")
			continue
		}

		if r.report.Fetched > 0 {
			if err := r.o.wait(ctx); err != nil {
				r.report.Cancelled = true
				break
			}
		}
		r.report.Fetched++
		r.process(ctx, c)
	}
	if ctx.Err() != nil {
		r.report.Cancelled = true
	}

	return r.persist(ctx)
}

func (r *run) loadKeys(ctx context.Context) error {
	staged, err := r.o.store.StagedKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load staged keys: %w", err)
	}
	live, err := r.o.store.LiveKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load live keys: %w", err)
	}
	r.keys = dedup.NewKeys(staged, live)
	r.logger.Debug("dedup keys loaded", zap.Int("staged", len(staged)), zap.Int("live", len(live)))
	return nil
}

// process fetches and extracts one candidate, appending it to the batch when
// it survives validation and the post-extraction dedup check.
func (r *run) process(ctx context.Context, c sources.Candidate) {
	r.transition(StateFetchingDetail, c.DetailURL)
	fetchCtx, cancel := context.WithTimeout(ctx, r.o.timeout)
	doc, err := r.session.Fetch(fetchCtx, r.src.DetailRequest(c))
	cancel()
	if err != nil {
		r.report.Failed++
		r.logger.Warn("detail fetch failed",
			zap.String("url", c.DetailURL),
			zap.Bool("timeout", fetch.IsTimeout(err)),
			zap.Error(err))
		r.outcome(c, OutcomeFetchFailed, err.Error())
		return
	}

	r.transition(StateExtractingDetail, c.DetailURL)
	now := r.o.now()
	p, err := r.src.ExtractDetail(doc, c, now)
	if err != nil {
		r.report.Failed++
		r.logger.Warn("detail extraction failed", zap.String("url", c.DetailURL), zap.Error(err))
		r.outcome(c, OutcomeExtractFailed, err.Error())
		return
	}
	if p.Source == "" {
		p.Source = r.src.Tag()
	}
	p.Normalize(now)
	if err := p.Validate(); err != nil {
		r.report.Failed++
		r.logger.Warn("extracted posting is invalid", zap.String("url", c.DetailURL), zap.Error(err))
		r.outcome(c, OutcomeInvalid, err.Error())
		return
	}
	r.report.Extracted++

	if r.keys.Known(p.Title, p.Company) {
		r.report.Skipped++
		r.outcome(c, OutcomeDuplicate, "duplicate after extraction")
		return
	}

	r.transition(StateAccumulating, c.DetailURL)
	r.keys.Add(p.Title, p.Company)
	r.batch = append(r.batch, *p)
	r.outcome(c, OutcomeAccumulated, p.Title)
}

func (r *run) persist(ctx context.Context) error {
	r.transition(StatePersisting, "")
	if len(r.batch) == 0 {
		r.logger.Info("nothing new to stage")
		return nil
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	n, err := r.o.store.InsertStaged(ctx, r.batch)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("failed to stage %d postings", len(r.batch)), err)
	}
	r.report.Staged = n
	return nil
}

func (r *run) transition(state State, message string) {
	r.report.State = state
	r.emit(ProgressEvent{State: state, Message: message})
}

func (r *run) outcome(c sources.Candidate, outcome Outcome, message string) {
	r.emit(ProgressEvent{State: r.report.State, Outcome: outcome, DetailURL: c.DetailURL, Message: message})
}

func (r *run) emit(event ProgressEvent) {
	if r.o.onProgress == nil {
		return
	}
	event.RunID = r.report.RunID.String()
	event.Source = r.report.Source
	r.o.onProgress(event)
}

// wait blocks for the inter-request delay or until ctx is done.
func (o *Orchestrator) wait(ctx context.Context) error {
	if o.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
