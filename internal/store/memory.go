package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/jobstage/internal/posting"
)

var _ Gateway = (*Memory)(nil)

// Memory is an in-process Gateway. Promotion runs under one lock, so it has
// the same all-or-nothing behavior as the database implementation.
type Memory struct {
	mu     sync.RWMutex
	staged map[uuid.UUID]posting.Staged
	order  []uuid.UUID
	jobs   map[uuid.UUID]posting.Job

	// InsertCalls counts InsertStaged calls.
	InsertCalls int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		staged: make(map[uuid.UUID]posting.Staged),
		jobs:   make(map[uuid.UUID]posting.Job),
	}
}

func (m *Memory) InsertStaged(_ context.Context, postings []posting.Posting) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	for _, p := range postings {
		id := uuid.New()
		p.Requirements = slices.Clone(p.Requirements)
		p.Benefits = slices.Clone(p.Benefits)
		m.staged[id] = posting.Staged{ID: id, Posting: p}
		m.order = append(m.order, id)
	}
	return len(postings), nil
}

// ListStaged returns staged postings newest first.
func (m *Memory) ListStaged(_ context.Context) ([]posting.Staged, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]posting.Staged, 0, len(m.staged))
	for i := len(m.order) - 1; i >= 0; i-- {
		if s, ok := m.staged[m.order[i]]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) GetStaged(_ context.Context, id uuid.UUID) (*posting.Staged, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staged[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) DeleteStaged(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteStagedLocked(id)
}

func (m *Memory) deleteStagedLocked(id uuid.UUID) error {
	if _, ok := m.staged[id]; !ok {
		return ErrNotFound
	}
	delete(m.staged, id)
	m.order = slices.DeleteFunc(m.order, func(o uuid.UUID) bool { return o == id })
	return nil
}

func (m *Memory) StagedKeys(_ context.Context) ([]posting.KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]posting.KeyPair, 0, len(m.staged))
	for _, id := range m.order {
		if s, ok := m.staged[id]; ok {
			out = append(out, s.KeyPair())
		}
	}
	return out, nil
}

func (m *Memory) FindJobByKey(_ context.Context, title, company string) (*posting.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findJobLocked(posting.Key(title, company)), nil
}

func (m *Memory) findJobLocked(key string) *posting.Job {
	for _, j := range m.jobs {
		if j.Key() == key {
			return &j
		}
	}
	return nil
}

func (m *Memory) LiveKeys(_ context.Context) ([]posting.KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]posting.KeyPair, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.KeyPair())
	}
	return out, nil
}

func (m *Memory) Promote(_ context.Context, stagedID uuid.UUID, job *posting.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.staged[stagedID]; !ok {
		return ErrNotFound
	}
	if m.findJobLocked(job.Key()) != nil {
		return ErrDuplicate
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	m.jobs[job.ID] = *job
	return m.deleteStagedLocked(stagedID)
}

// GetJob returns a live job by id.
func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (*posting.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// SeedJob adds a live job directly, as the listings API would.
func (m *Memory) SeedJob(job posting.Job) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	m.jobs[job.ID] = job
	return job.ID
}
