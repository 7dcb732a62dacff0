package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/jobstage/internal/config"
	"github.com/jonathan/jobstage/internal/events"
	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/moderation"
	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/schemas"
	"github.com/jonathan/jobstage/internal/scrape"
	"github.com/jonathan/jobstage/internal/server/middleware"
	"github.com/jonathan/jobstage/internal/server/ratelimit"
	"github.com/jonathan/jobstage/internal/sources"
	"github.com/jonathan/jobstage/internal/store"
	jsonschemas "github.com/jonathan/jobstage/schemas"
)

const testJWTSecret = "server-test-secret-0123456789abcdef"

// stubSource serves one candidate whose detail page is a fixed HTML document.
type stubSource struct {
	tag string
}

func (s *stubSource) Tag() string              { return s.tag }
func (s *stubSource) Strategy() fetch.Strategy { return fetch.StrategyStatic }
func (s *stubSource) ListingRequest() fetch.Request {
	return fetch.Request{URL: "https://" + s.tag + ".test/list"}
}
func (s *stubSource) ResetsDatesOnImport() bool { return false }
func (s *stubSource) DetailRequest(c sources.Candidate) fetch.Request {
	return fetch.Request{URL: c.DetailURL}
}

func (s *stubSource) ExtractCandidates(*fetch.Document) iter.Seq[sources.Candidate] {
	return slices.Values([]sources.Candidate{{
		Title:       "Junior " + s.tag,
		DetailURL:   "https://" + s.tag + ".test/job/1",
		CompanyHint: "Acme",
	}})
}

func (s *stubSource) ExtractDetail(doc *fetch.Document, c sources.Candidate, now time.Time) (*posting.Posting, error) {
	return &posting.Posting{
		Title:          c.Title,
		Company:        c.CompanyHint,
		ApplicationURL: doc.URL,
		CreatedAt:      now,
		ExpiresAt:      now.Add(posting.DefaultExpiryWindow),
	}, nil
}

type stubProvider struct{ failListing bool }

func (p *stubProvider) Open(context.Context, fetch.Strategy) (fetch.Session, error) {
	return fetch.NopSession(p), nil
}

func (p *stubProvider) Fetch(_ context.Context, req fetch.Request) (*fetch.Document, error) {
	if p.failListing && strings.HasSuffix(req.URL, "/list") {
		return nil, &fetch.Error{URL: req.URL, Kind: fetch.KindNetwork, Message: "connection refused"}
	}
	return fetch.ParseDocument(req.URL, "<html><body><h1>job</h1></body></html>")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

type testEnv struct {
	server   *Server
	store    *store.Memory
	events   *events.Recorder
	jwt      *JWTService
	provider *stubProvider
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, Config{Port: 0}, mutate...)
}

func newTestEnvWithConfig(t *testing.T, cfg Config, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := store.NewMemory()
	rec := &events.Recorder{}
	provider := &stubProvider{}
	registry := sources.NewRegistry(&stubSource{tag: "alpha"}, &stubSource{tag: "beta"})
	jwtSvc := NewJWTService(&config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1})

	deps := Deps{
		Scraper:    scrape.New(provider, mem, rec, logger, scrape.Options{DetailDelay: -1}),
		Sources:    registry,
		Moderation: moderation.NewService(mem, rec, logger),
		JWT:        jwtSvc,
		RateLimit:  &ratelimit.Config{Enabled: false},
		Logger:     logger,
	}
	for _, m := range mutate {
		m(&deps)
	}

	s, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &testEnv{server: s, store: mem, events: rec, jwt: jwtSvc, provider: provider}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken("operator", role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) stage(t *testing.T, title, company string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	_, err := e.store.InsertStaged(context.Background(), []posting.Posting{{
		Title:          title,
		Company:        company,
		EmploymentType: posting.FullTime,
		Level:          posting.LevelJunior,
		ApplicationURL: "https://example.com/apply",
		CreatedAt:      now,
		ExpiresAt:      now.Add(posting.DefaultExpiryWindow),
		Source:         "alpha",
	}})
	require.NoError(t, err)
	staged, err := e.store.ListStaged(context.Background())
	require.NoError(t, err)
	return staged[0].ID
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, w)["status"])
}

func TestHealthEndpoint_DependencyDown(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Health = failingPinger{} })

	w := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/staged"},
		{http.MethodPost, "/staged/import"},
		{http.MethodPost, "/staged/reject"},
		{http.MethodPost, "/scrape"},
		{http.MethodPost, "/scrape/alpha"},
		{http.MethodGet, "/sources"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, env.do(t, rt.method, rt.path, "", "").Code)
			assert.Equal(t, http.StatusForbidden, env.do(t, rt.method, rt.path, "", env.token(t, "viewer")).Code)
		})
	}
}

func TestListStaged(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)

	w := env.do(t, http.MethodGet, "/staged", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decodeBody[StagedListResponse](t, w)
	assert.Equal(t, 0, empty.Count)
	assert.NotNil(t, empty.Postings)

	env.stage(t, "Junior Go", "Acme")
	w = env.do(t, http.MethodGet, "/staged", "", admin)
	resp := decodeBody[StagedListResponse](t, w)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Junior Go", resp.Postings[0].Title)

	var raw struct {
		Postings []json.RawMessage `json:"postings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	for _, doc := range raw.Postings {
		assert.NoError(t, schemas.Validate(jsonschemas.Posting, doc))
	}
}

func TestImport(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)
	id := env.stage(t, "Junior Go", "Acme")

	w := env.do(t, http.MethodPost, "/staged/import", `{"jobId":"`+id.String()+`","category":"Backend"}`, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool        `json:"success"`
		Job     posting.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Backend", resp.Job.Category)

	staged, _ := env.store.GetStaged(context.Background(), id)
	assert.Nil(t, staged)
	assert.Equal(t, []string{events.SubjectImported}, env.events.Subjects())
}

func TestImport_Errors(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)
	dupID := env.stage(t, "Junior Go", "Acme")
	env.store.SeedJob(posting.Job{Posting: posting.Posting{Title: "Junior Go", Company: "Acme"}})

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"duplicate", `{"jobId":"` + dupID.String() + `"}`, http.StatusConflict, "duplicate job already exists"},
		{"missing", `{"jobId":"` + uuid.NewString() + `"}`, http.StatusNotFound, "not found"},
		{"no id", `{}`, http.StatusBadRequest, "JobID"},
		{"bad id", `{"jobId":"nope"}`, http.StatusBadRequest, "JobID"},
		{"not json", `{`, http.StatusBadRequest, "invalid JSON"},
		{"unknown field", `{"jobId":"` + dupID.String() + `","extra":1}`, http.StatusBadRequest, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/staged/import", tt.body, admin)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, decodeBody[map[string]string](t, w)["error"], tt.message)
		})
	}

	still, _ := env.store.GetStaged(context.Background(), dupID)
	assert.NotNil(t, still, "conflict must leave the staged posting in place")
}

func TestReject(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)
	id := env.stage(t, "Junior Go", "Acme")

	w := env.do(t, http.MethodPost, "/staged/reject", `{"jobId":"`+id.String()+`"}`, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/staged/reject", `{"jobId":"`+id.String()+`"}`, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScrapeSource(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)

	w := env.do(t, http.MethodPost, "/scrape/alpha", "", admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[ScrapeResponse](t, w)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "alpha", resp.Reports[0].Source)
	assert.Equal(t, scrape.StateDone, resp.Reports[0].State)
	assert.Equal(t, 1, resp.Reports[0].Staged)

	w = env.do(t, http.MethodPost, "/scrape/gamma", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScrapeSource_ListingFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failListing = true
	admin := env.token(t, middleware.RoleAdmin)

	w := env.do(t, http.MethodPost, "/scrape/alpha", "", admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeBody[ScrapeResponse](t, w)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, scrape.StateFailed, resp.Reports[0].State)
	assert.NotEmpty(t, resp.Error)
}

func TestScrapeAll(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)

	w := env.do(t, http.MethodPost, "/scrape", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[ScrapeResponse](t, w)
	require.Len(t, resp.Reports, 2)
	assert.Empty(t, resp.Error)

	keys, _ := env.store.StagedKeys(context.Background())
	assert.Len(t, keys, 2)
}

func TestScrapeStream(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, middleware.RoleAdmin)

	w := env.do(t, http.MethodPost, "/scrape/beta/stream", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, `"outcome":"accumulated"`)
	assert.Contains(t, body, "event: complete")
}

func TestListSources(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/sources", "", env.token(t, middleware.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string][]string](t, w)
	assert.Equal(t, []string{"alpha", "beta"}, resp["registered"])
	assert.Equal(t, []string{"alpha", "beta"}, resp["enabled"])
}

func TestScrapeSource_DisabledIsNotFound(t *testing.T) {
	env := newTestEnvWithConfig(t, Config{EnabledSources: []string{"alpha"}})
	admin := env.token(t, middleware.RoleAdmin)

	w := env.do(t, http.MethodPost, "/scrape/beta", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not enabled")

	w = env.do(t, http.MethodPost, "/scrape/beta/stream", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/scrape/alpha", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RejectsUnknownEnabledSource(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mem := store.NewMemory()
	_, err := New(Config{EnabledSources: []string{"nope"}}, Deps{
		Scraper:    scrape.New(&stubProvider{}, mem, nil, logger, scrape.Options{}),
		Sources:    sources.NewRegistry(&stubSource{tag: "alpha"}),
		Moderation: moderation.NewService(mem, nil, logger),
		JWT:        NewJWTService(&config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1}),
	})
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.RateLimit = &ratelimit.Config{
			Enabled:         true,
			DefaultLimit:    100,
			DefaultWindow:   time.Minute,
			EndpointConfigs: ratelimit.DefaultEndpointConfigs(),
		}
	})
	admin := env.token(t, middleware.RoleAdmin)

	first := env.do(t, http.MethodPost, "/scrape", "", admin)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Limit"))

	second := env.do(t, http.MethodPost, "/scrape", "", admin)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/staged", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
