// Package fetch retrieves raw documents from job sites. It abstracts over a
// static HTTP strategy and a headless-browser strategy behind one Fetcher.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent is a desktop browser user agent; both target sites reject obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// Strategy selects how a source's pages are retrieved.
type Strategy string

const (
	StrategyStatic   Strategy = "static"
	StrategyRendered Strategy = "rendered"
)

// Request describes one page retrieval.
type Request struct {
	URL string
	// WaitFor is a CSS selector the rendered strategy waits to become visible.
	// The static strategy ignores it.
	WaitFor string
	// Cacheable marks pages whose content may be served from the page cache.
	Cacheable bool
}

// Fetcher retrieves one document.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Document, error)
}

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	KindInvalid ErrorKind = "invalid"
	KindNetwork ErrorKind = "network"
	KindTimeout ErrorKind = "timeout"
	KindStatus  ErrorKind = "status"
)

// Error represents an error during page retrieval.
type Error struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s error for %s: %s: %v", e.Kind, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s error for %s: %s", e.Kind, e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}

// Options configures the static fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// browserHeaders are sent with every static request.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "bs,hr;q=0.9,en-US;q=0.8,en;q=0.7",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Static fetches pages with a plain HTTP GET. It never retries.
type Static struct {
	client  *http.Client
	options *Options
}

// NewStatic creates a static fetcher.
func NewStatic(opts *Options) *Static {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Static{
		client:  &http.Client{Timeout: opts.Timeout},
		options: opts,
	}
}

// Fetch retrieves and parses the page at req.URL.
func (s *Static) Fetch(ctx context.Context, req Request) (*Document, error) {
	urlStr := req.URL

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Kind: KindInvalid, Message: "invalid URL", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: KindInvalid, Message: "failed to create request", Cause: err}
	}

	httpReq.Header.Set("User-Agent", s.options.UserAgent)
	for key, value := range browserHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range s.options.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: classify(err), Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{
			URL:        urlStr,
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: classify(err), Message: "failed to read response body", Cause: err}
	}

	doc, err := ParseDocument(urlStr, string(body))
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: KindNetwork, Message: "failed to parse HTML", Cause: err}
	}
	doc.StatusCode = resp.StatusCode
	return doc, nil
}

// classify maps transport errors to a kind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
