package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/cache"
)

// DefaultPageCacheTTL is how long a fetched detail page is reused.
const DefaultPageCacheTTL = 6 * time.Hour

// CachedFetcher serves cacheable requests from a page cache and stores
// fresh results in it. Cache failures never fail a fetch.
type CachedFetcher struct {
	next   Fetcher
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedFetcher wraps next with c. A nil cache disables caching.
func NewCachedFetcher(next Fetcher, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{next: next, cache: c, ttl: ttl, logger: logger}
}

// Fetch returns a cached document for cacheable requests when one is fresh.
func (f *CachedFetcher) Fetch(ctx context.Context, req Request) (*Document, error) {
	if f.cache == nil || !req.Cacheable {
		return f.next.Fetch(ctx, req)
	}

	key := PageCacheKey(req.URL)
	html, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		doc, perr := ParseDocument(req.URL, html)
		if perr == nil {
			doc.FromCache = true
			return doc, nil
		}
		f.logger.Warn("discarding unparsable cached page", zap.String("url", req.URL), zap.Error(perr))
	case !errors.Is(err, cache.ErrNotFound):
		f.logger.Warn("page cache read failed", zap.String("url", req.URL), zap.Error(err))
	}

	doc, err := f.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Set(ctx, key, doc.HTML, f.ttl); err != nil {
		f.logger.Warn("page cache write failed", zap.String("url", req.URL), zap.Error(err))
	}
	return doc, nil
}

// Invalidate drops a cached page.
func (f *CachedFetcher) Invalidate(ctx context.Context, urlStr string) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Delete(ctx, PageCacheKey(urlStr))
}

// PageCacheKey returns the cache key for a page URL.
func PageCacheKey(urlStr string) string {
	sum := sha256.Sum256([]byte(urlStr))
	return "page:" + hex.EncodeToString(sum[:])
}
