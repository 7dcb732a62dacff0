//go:build integration

package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/store"
)

const testSource = "integration-test"

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err, "failed to connect to test database")

	_, err = NewMigrator(db, nil).Up(ctx)
	require.NoError(t, err)

	// Clean up test data before each test
	_, _ = db.pool.Exec(ctx, "DELETE FROM staged_postings WHERE source = $1", testSource)
	_, _ = db.pool.Exec(ctx, "DELETE FROM jobs WHERE source = $1", testSource)

	return db
}

func testPosting(title, company string) posting.Posting {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return posting.Posting{
		Title:          title,
		Company:        company,
		CompanyLogoURL: posting.Placeholder(company),
		Location:       "Sarajevo",
		EmploymentType: posting.FullTime,
		Category:       posting.DefaultCategory,
		Level:          posting.LevelJunior,
		Description:    "Build things",
		Requirements:   []string{"Go", "SQL"},
		Salary:         posting.DefaultSalary,
		ApplicationURL: "https://jobs.example.com/apply",
		CreatedAt:      now,
		ExpiresAt:      now.Add(posting.DefaultExpiryWindow),
		IsActive:       true,
		Source:         testSource,
	}
}

func stagedByTitle(t *testing.T, db *DB, title string) *posting.Staged {
	t.Helper()
	all, err := db.ListStaged(context.Background())
	require.NoError(t, err)
	for _, s := range all {
		if s.Title == title && s.Source == testSource {
			return &s
		}
	}
	t.Fatalf("staged posting %q not found", title)
	return nil
}

func TestIntegration_StagedPostings_CRUD(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	n, err := db.InsertStaged(ctx, []posting.Posting{
		testPosting("Integration Junior A", "Acme"),
		testPosting("Integration Junior B", "Acme"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s := stagedByTitle(t, db, "Integration Junior A")
	assert.Equal(t, []string{"Go", "SQL"}, s.Requirements)
	assert.Empty(t, s.Benefits)
	assert.Equal(t, posting.FullTime, s.EmploymentType)
	assert.Nil(t, s.EmployerID)

	got, err := db.GetStaged(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.Title, got.Title)

	keys, err := db.StagedKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, posting.KeyPair{Title: "Integration Junior A", Company: "Acme"})

	require.NoError(t, db.DeleteStaged(ctx, s.ID))
	assert.ErrorIs(t, db.DeleteStaged(ctx, s.ID), store.ErrNotFound)

	missing, err := db.GetStaged(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIntegration_Promote(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertStaged(ctx, []posting.Posting{testPosting("Integration Promote", "Globex")})
	require.NoError(t, err)
	s := stagedByTitle(t, db, "Integration Promote")

	job := &posting.Job{Posting: s.Posting, UpdatedAt: s.CreatedAt}
	require.NoError(t, db.Promote(ctx, s.ID, job))
	assert.NotEqual(t, uuid.Nil, job.ID)

	gone, err := db.GetStaged(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	live, err := db.FindJobByKey(ctx, "Integration Promote", "Globex")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, job.ID, live.ID)

	assert.ErrorIs(t, db.Promote(ctx, s.ID, &posting.Job{Posting: s.Posting}), store.ErrNotFound)
}

func TestIntegration_PromoteDuplicateLeavesStaged(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertStaged(ctx, []posting.Posting{testPosting("Integration Dup", "Initech")})
	require.NoError(t, err)
	first := stagedByTitle(t, db, "Integration Dup")
	require.NoError(t, db.Promote(ctx, first.ID, &posting.Job{Posting: first.Posting, UpdatedAt: first.CreatedAt}))

	_, err = db.InsertStaged(ctx, []posting.Posting{testPosting("Integration Dup", "Initech")})
	require.NoError(t, err)
	second := stagedByTitle(t, db, "Integration Dup")

	err = db.Promote(ctx, second.ID, &posting.Job{Posting: second.Posting, UpdatedAt: second.CreatedAt})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	still, err := db.GetStaged(ctx, second.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestIntegration_ConcurrentPromoteOnlyOneWins(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertStaged(ctx, []posting.Posting{testPosting("Integration Race", "Hooli")})
	require.NoError(t, err)
	s := stagedByTitle(t, db, "Integration Race")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.Promote(ctx, s.ID, &posting.Job{Posting: s.Posting, UpdatedAt: s.CreatedAt})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicate), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}
