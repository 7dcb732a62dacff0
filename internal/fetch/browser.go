package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultWaitTimeout bounds how long one rendered page may take to show its selector.
const DefaultWaitTimeout = 20 * time.Second

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	Headless    bool
	WaitTimeout time.Duration
	UserAgent   string
	// ExecPath overrides the Chrome binary; empty means auto-detect.
	ExecPath string
	// Headers are added to every tab request, on top of Accept-Language.
	Headers map[string]string
}

// DefaultBrowserOptions returns the options used by the rendered strategy.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:    true,
		WaitTimeout: DefaultWaitTimeout,
		UserAgent:   DefaultUserAgent,
	}
}

// allocatorOptions builds the exec allocator flags.
func (o BrowserOptions) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// extraHeaders is what each tab sends in addition to Chrome's own headers.
func (o BrowserOptions) extraHeaders() network.Headers {
	h := network.Headers{"Accept-Language": browserHeaders["Accept-Language"]}
	for k, v := range o.Headers {
		h[k] = v
	}
	return h
}

// Browser is one headless browser process shared by all pages of a run.
// Every Fetch opens its own tab and closes it before returning.
// Browser requires Chrome/Chromium to be installed.
type Browser struct {
	opts   BrowserOptions
	logger *zap.Logger

	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc

	closeOnce sync.Once
}

// NewBrowser launches the browser process. The process outlives ctx's
// cancellation only until Close is called.
func NewBrowser(ctx context.Context, opts BrowserOptions, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, &Error{Kind: KindNetwork, Message: "failed to launch browser", Cause: err}
	}

	logger.Debug("browser started", zap.Bool("headless", opts.Headless))
	return &Browser{
		opts:          opts,
		logger:        logger,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Fetch navigates a new tab to req.URL, waits for req.WaitFor to become
// visible and returns the rendered DOM.
func (b *Browser) Fetch(ctx context.Context, req Request) (*Document, error) {
	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	defer closeTab()

	tabCtx, cancel := context.WithTimeout(tabCtx, b.opts.WaitTimeout)
	defer cancel()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	waitSelector := req.WaitFor
	if waitSelector == "" {
		waitSelector = "body"
	}

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(b.opts.extraHeaders()),
		chromedp.Navigate(req.URL),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, b.renderError(ctx, tabCtx, req, err)
	}

	b.logger.Debug("page rendered",
		zap.String("url", req.URL),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)))

	doc, err := ParseDocument(req.URL, html)
	if err != nil {
		return nil, &Error{URL: req.URL, Kind: KindNetwork, Message: "failed to parse rendered HTML", Cause: err}
	}
	return doc, nil
}

// renderError classifies a failed render. The caller's deadline surfaces in
// the tab only as a cancellation, so ctx is checked as well as tabCtx.
func (b *Browser) renderError(ctx, tabCtx context.Context, req Request, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(tabCtx.Err(), context.DeadlineExceeded):
		return &Error{
			URL:     req.URL,
			Kind:    KindTimeout,
			Message: fmt.Sprintf("selector %q not visible within %s", req.WaitFor, b.opts.WaitTimeout),
			Cause:   err,
		}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{
			URL:     req.URL,
			Kind:    KindTimeout,
			Message: fmt.Sprintf("deadline exceeded waiting for selector %q", req.WaitFor),
			Cause:   errors.Join(err, ctx.Err()),
		}
	}
	return &Error{URL: req.URL, Kind: KindNetwork, Message: "browser navigation failed", Cause: err}
}

// Close shuts the browser process down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.cancelBrowser()
		b.cancelAlloc()
		b.logger.Debug("browser stopped")
	})
	return nil
}
