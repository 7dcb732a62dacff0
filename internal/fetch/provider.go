package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/cache"
)

// Session is a Fetcher scoped to one run. Close releases whatever the
// session holds, such as a browser process.
type Session interface {
	Fetcher
	Close() error
}

// Provider opens run-scoped sessions for a strategy.
type Provider interface {
	Open(ctx context.Context, strategy Strategy) (Session, error)
}

// ProviderConfig configures a Launcher.
type ProviderConfig struct {
	Static   *Options
	Browser  BrowserOptions
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Launcher is the production Provider: a shared static client, and a fresh
// browser process per rendered session.
type Launcher struct {
	static *Static
	cfg    ProviderConfig
	logger *zap.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg ProviderConfig, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		static: NewStatic(cfg.Static),
		cfg:    cfg,
		logger: logger,
	}
}

// Open returns a session for the strategy.
func (l *Launcher) Open(ctx context.Context, strategy Strategy) (Session, error) {
	switch strategy {
	case StrategyStatic, "":
		return &session{Fetcher: l.withCache(l.static)}, nil
	case StrategyRendered:
		browser, err := NewBrowser(ctx, l.cfg.Browser, l.logger)
		if err != nil {
			return nil, err
		}
		return &session{Fetcher: l.withCache(browser), close: browser.Close}, nil
	default:
		return nil, fmt.Errorf("unknown fetch strategy %q", strategy)
	}
}

func (l *Launcher) withCache(next Fetcher) Fetcher {
	if l.cfg.Cache == nil {
		return next
	}
	return NewCachedFetcher(next, l.cfg.Cache, l.cfg.CacheTTL, l.logger)
}

type session struct {
	Fetcher
	close func() error
}

func (s *session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NopSession adapts a plain Fetcher into a Session with a no-op Close.
func NopSession(f Fetcher) Session {
	return &session{Fetcher: f}
}
