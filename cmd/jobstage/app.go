package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/jobstage/internal/cache"
	"github.com/jonathan/jobstage/internal/cache/redis"
	"github.com/jonathan/jobstage/internal/config"
	"github.com/jonathan/jobstage/internal/db"
	"github.com/jonathan/jobstage/internal/events"
	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/logging"
	"github.com/jonathan/jobstage/internal/moderation"
	"github.com/jonathan/jobstage/internal/scrape"
	"github.com/jonathan/jobstage/internal/sources"
	"github.com/jonathan/jobstage/internal/sources/dzobs"
	"github.com/jonathan/jobstage/internal/sources/mojposao"
	"github.com/jonathan/jobstage/internal/store"
)

// app is the wired set of services shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	gateway   store.Gateway
	db        *db.DB
	cache     cache.Cache
	publisher events.Publisher
	registry  *sources.Registry
	fetchers  fetch.Provider

	closers []func()
}

// newRegistry returns every source this binary knows.
func newRegistry() *sources.Registry {
	return sources.NewRegistry(mojposao.New(), dzobs.New())
}

func loadConfig(storeOverride string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if storeOverride != "" {
		cfg.Store = storeOverride
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newApp connects the configured backends. Callers must Close the result.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: newRegistry()}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.connectStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.connectCache(ctx)
	if err := a.connectEvents(); err != nil {
		a.Close()
		return nil, err
	}

	static := fetch.DefaultOptions()
	static.Timeout = cfg.RequestTimeout.Std()
	browser := fetch.DefaultBrowserOptions()
	browser.Headless = cfg.IsHeadless()
	browser.WaitTimeout = cfg.BrowserWaitTimeout.Std()
	a.fetchers = fetch.NewLauncher(fetch.ProviderConfig{
		Static:   static,
		Browser:  browser,
		Cache:    a.cache,
		CacheTTL: cfg.CacheTTL.Std(),
	}, logger)

	return a, nil
}

func (a *app) connectStore(ctx context.Context) error {
	switch a.cfg.Store {
	case config.StoreMemory:
		a.logger.Warn("using in-memory store; staged postings are lost on exit")
		a.gateway = store.NewMemory()
		return nil
	default:
		database, err := db.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = database
		a.gateway = database
		a.closers = append(a.closers, database.Close)
		return nil
	}
}

// connectCache prefers Redis and falls back to memory when it is unreachable.
func (a *app) connectCache(ctx context.Context) {
	ttl := a.cfg.CacheTTL.Std()
	if a.cfg.RedisAddr == "" {
		a.cache = cache.NewMemory(ttl)
		return
	}

	rc := redis.New(cache.Options{
		DefaultTTL:    ttl,
		RedisAddr:     a.cfg.RedisAddr,
		RedisPassword: a.cfg.RedisPassword,
		RedisDB:       a.cfg.RedisDB,
	})
	if err := rc.Ping(ctx); err != nil {
		a.logger.Warn("redis unavailable, using in-memory page cache",
			zap.String("addr", a.cfg.RedisAddr), zap.Error(err))
		_ = rc.Close()
		a.cache = cache.NewMemory(ttl)
		return
	}
	a.cache = rc
	a.closers = append(a.closers, func() { _ = rc.Close() })
}

func (a *app) connectEvents() error {
	if a.cfg.NATSURL == "" {
		a.publisher = events.Nop{}
		return nil
	}
	pub, err := events.NewNATSPublisher(events.Config{URL: a.cfg.NATSURL}, a.logger)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	return nil
}

func (a *app) orchestrator() *scrape.Orchestrator {
	return scrape.New(a.fetchers, a.gateway, a.publisher, a.logger, scrape.Options{
		DetailDelay:   a.cfg.DetailDelay.Std(),
		DetailTimeout: scrape.DefaultDetailTimeout,
	})
}

func (a *app) moderation() *moderation.Service {
	return moderation.NewService(a.gateway, a.publisher, a.logger,
		moderation.WithResetDates(a.registry.ResetDateTags()))
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
