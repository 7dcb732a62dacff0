package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		assert.Equal(t, "1", r.Header.Get("Upgrade-Insecure-Requests"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Junior Go</h1></body></html>"))
	}))
	defer server.Close()

	doc, err := NewStatic(nil).Fetch(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, server.URL, doc.URL)
	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Contains(t, doc.HTML, "<h1>Junior Go</h1>")
	assert.Equal(t, "Junior Go", doc.Text("h1"))
}

func TestStatic_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom", r.Header.Get("X-Test"))
		assert.Equal(t, "agent/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	f := NewStatic(&Options{UserAgent: "agent/1.0", Headers: map[string]string{"X-Test": "custom"}})
	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
}

func TestStatic_InvalidURL(t *testing.T) {
	_, err := NewStatic(nil).Fetch(context.Background(), Request{URL: "not-a-valid-url"})
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindInvalid, fetchErr.Kind)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestStatic_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	doc, err := NewStatic(nil).Fetch(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	assert.Nil(t, doc)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindStatus, fetchErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "503")
}

func TestStatic_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	f := NewStatic(&Options{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
}

func TestStatic_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStatic(nil).Fetch(ctx, Request{URL: server.URL})
	require.Error(t, err)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindNetwork, fetchErr.Kind)
}

func TestCleanWhitespace(t *testing.T) {
	in := "  Junior   Developer \n\n\t Sarajevo  \n"
	assert.Equal(t, "Junior Developer\nSarajevo", CleanWhitespace(in))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(&Error{Kind: KindTimeout}))
	assert.False(t, IsTimeout(&Error{Kind: KindNetwork}))
	assert.False(t, IsTimeout(context.Canceled))
}

func TestBrowser_RenderErrorClassification(t *testing.T) {
	b := &Browser{opts: DefaultBrowserOptions()}
	req := Request{URL: "https://example.com", WaitFor: "h1"}

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err := b.renderError(context.Background(), expired, req, context.DeadlineExceeded)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), `"h1"`)

	// caller deadline reaches the tab as a cancellation
	tab, cancelTab := context.WithCancel(context.Background())
	cancelTab()
	err = b.renderError(expired, tab, req, context.Canceled)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelCaller := context.WithCancel(context.Background())
	cancelCaller()
	err = b.renderError(cancelled, tab, req, context.Canceled)
	assert.False(t, IsTimeout(err), "plain cancellation is not a timeout")

	err = b.renderError(context.Background(), context.Background(), req, assert.AnError)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindNetwork, fetchErr.Kind)
}

func TestBrowserOptions_Allocator(t *testing.T) {
	opts := DefaultBrowserOptions()
	base := len(opts.allocatorOptions())

	opts.ExecPath = "/usr/bin/chromium"
	assert.Len(t, opts.allocatorOptions(), base+1)
}

func TestBrowserOptions_ExtraHeaders(t *testing.T) {
	opts := DefaultBrowserOptions()
	h := opts.extraHeaders()
	assert.Equal(t, browserHeaders["Accept-Language"], h["Accept-Language"])

	opts.Headers = map[string]string{"X-Test": "1", "Accept-Language": "en"}
	h = opts.extraHeaders()
	assert.Equal(t, "1", h["X-Test"])
	assert.Equal(t, "en", h["Accept-Language"])
}
