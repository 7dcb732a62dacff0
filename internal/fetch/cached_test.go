package fetch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobstage/internal/cache"
)

type countingFetcher struct {
	calls atomic.Int32
	html  string
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, req Request) (*Document, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return ParseDocument(req.URL, f.html)
}

func TestCachedFetcher_HitAfterMiss(t *testing.T) {
	ctx := context.Background()
	next := &countingFetcher{html: "<html><h1>Cached</h1></html>"}
	f := NewCachedFetcher(next, cache.NewMemory(time.Hour), time.Hour, nil)
	req := Request{URL: "https://example.com/job/1", Cacheable: true}

	first, err := f.Fetch(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "Cached", second.Text("h1"))
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedFetcher_BypassesNonCacheable(t *testing.T) {
	ctx := context.Background()
	next := &countingFetcher{html: "<html></html>"}
	f := NewCachedFetcher(next, cache.NewMemory(time.Hour), time.Hour, nil)
	req := Request{URL: "https://example.com/listing"}

	for range 3 {
		_, err := f.Fetch(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	next := &countingFetcher{err: &Error{Kind: KindTimeout, URL: "u"}}
	c := cache.NewMemory(time.Hour)
	f := NewCachedFetcher(next, c, time.Hour, nil)
	req := Request{URL: "https://example.com/job/2", Cacheable: true}

	_, err := f.Fetch(ctx, req)
	require.Error(t, err)
	_, err = c.Get(ctx, PageCacheKey(req.URL))
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCachedFetcher_Invalidate(t *testing.T) {
	ctx := context.Background()
	next := &countingFetcher{html: "<html></html>"}
	f := NewCachedFetcher(next, cache.NewMemory(time.Hour), time.Hour, nil)
	req := Request{URL: "https://example.com/job/3", Cacheable: true}

	_, err := f.Fetch(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.Invalidate(ctx, req.URL))
	_, err = f.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestLauncher_OpenStatic(t *testing.T) {
	l := NewLauncher(ProviderConfig{}, nil)
	s, err := l.Open(context.Background(), StrategyStatic)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestLauncher_UnknownStrategy(t *testing.T) {
	l := NewLauncher(ProviderConfig{}, nil)
	_, err := l.Open(context.Background(), Strategy("carrier-pigeon"))
	assert.Error(t, err)
}

func TestPageCacheKey_Stable(t *testing.T) {
	assert.Equal(t, PageCacheKey("https://a"), PageCacheKey("https://a"))
	assert.NotEqual(t, PageCacheKey("https://a"), PageCacheKey("https://b"))
}
