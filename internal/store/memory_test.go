package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobstage/internal/posting"
)

func samplePosting(title, company string) posting.Posting {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return posting.Posting{
		Title:          title,
		Company:        company,
		EmploymentType: posting.FullTime,
		Level:          posting.LevelJunior,
		ApplicationURL: "https://example.com/" + title,
		CreatedAt:      now,
		ExpiresAt:      now.Add(posting.DefaultExpiryWindow),
		Source:         "dzobs",
		IsActive:       true,
	}
}

func TestMemory_InsertListDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	n, err := m.InsertStaged(ctx, []posting.Posting{samplePosting("A", "X"), samplePosting("B", "Y")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.InsertCalls)

	staged, err := m.ListStaged(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal(t, "B", staged[0].Title, "newest first")

	keys, err := m.StagedKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []posting.KeyPair{{Title: "A", Company: "X"}, {Title: "B", Company: "Y"}}, keys)

	require.NoError(t, m.DeleteStaged(ctx, staged[0].ID))
	assert.ErrorIs(t, m.DeleteStaged(ctx, staged[0].ID), ErrNotFound)

	got, err := m.GetStaged(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_Promote(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertStaged(ctx, []posting.Posting{samplePosting("A", "X")})
	require.NoError(t, err)
	staged, _ := m.ListStaged(ctx)
	id := staged[0].ID

	job := &posting.Job{Posting: staged[0].Posting}
	require.NoError(t, m.Promote(ctx, id, job))
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.NotEqual(t, id, job.ID)

	got, _ := m.GetStaged(ctx, id)
	assert.Nil(t, got)
	live, _ := m.GetJob(ctx, job.ID)
	require.NotNil(t, live)

	assert.ErrorIs(t, m.Promote(ctx, id, &posting.Job{Posting: staged[0].Posting}), ErrNotFound)
}

func TestMemory_PromoteDuplicateLeavesStaged(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SeedJob(posting.Job{Posting: samplePosting("A", "X")})
	_, err := m.InsertStaged(ctx, []posting.Posting{samplePosting("A", "X")})
	require.NoError(t, err)
	staged, _ := m.ListStaged(ctx)

	err = m.Promote(ctx, staged[0].ID, &posting.Job{Posting: staged[0].Posting})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := m.GetStaged(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemory_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.InsertStaged(ctx, []posting.Posting{samplePosting(uuid.NewString(), string(rune('a'+i)))})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	staged, err := m.ListStaged(ctx)
	require.NoError(t, err)
	assert.Len(t, staged, 8)
}
