package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/portfolio"
	"portfolio-backend/internal/reports"
	"portfolio-backend/middleware/ratelimit/application"
	"portfolio-backend/middleware/ratelimit/domain"
	"portfolio-backend/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []llm.Request
	out   llm.Completion
	err   error
}

func (p *fakeProvider) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return p.out, p.err
}

type testEnv struct {
	handler  http.Handler
	clock    *fakeClock
	provider *fakeProvider
	budget   *infra.Budget
	root     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	budget := infra.NewBudget(100000, 24*time.Hour, clock.Now())
	gate := &application.Gate{
		Windows: infra.NewWindowStore(
			domain.WindowRule{Limit: 5, Window: 60 * time.Second},
			domain.WindowRule{Limit: 50, Window: 24 * time.Hour},
			infra.WithCleanupEvery(0),
		),
		Budget: budget,
		Limits: application.Limits{MaxInputLength: 500, MaxTokensPerRequest: 300},
		Clock:  clock,
	}

	doc, err := portfolio.ParseJSON([]byte(`{"education":{"program":"Computer Engineering"},"skills":{"languages":["Go"]},"projects":[{"name":"Chess AI","description":"Engine"}]}`))
	require.NoError(t, err)

	root := t.TempDir()
	dir := filepath.Join(root, "documents", "internship")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("%PDF-fake"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "evil.pdf"), []byte("%PDF-secret"), 0o600))

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	provider := &fakeProvider{out: llm.Completion{Text: "Adam knows Go.", TokensUsed: 120}}

	h := New(Deps{
		Gate:      gate,
		Provider:  provider,
		Estimator: &llm.TokenEstimator{},
		Portfolio: portfolio.NewStaticStore(doc),
		Reports:   reports.New([]string{dir, filepath.Join(root, "documents", "latex")}, nil),
		Metrics:   metrics,
		Gatherer:  reg,
	})

	return &testEnv{handler: h, clock: clock, provider: provider, budget: budget, root: root}
}

func (e *testEnv) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.RemoteAddr = "203.0.113.7:41000"
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestChat_SixthRequestInMinuteIsRejected(t *testing.T) {
	e := newTestEnv(t)

	for i := 0; i < 5; i++ {
		w := e.do(http.MethodPost, "/api/chat", `{"message":"What are Adam's skills?"}`, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		e.clock.Advance(2 * time.Second)
	}

	w := e.do(http.MethodPost, "/api/chat", `{"message":"one more"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Scope"))

	body := decode[map[string]any](t, w)
	assert.Equal(t, "minute", body["limit_type"])
	assert.EqualValues(t, 60, body["retry_after"])
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["message"])

	assert.Len(t, e.provider.calls, 5)
}

func TestChat_SuccessReportsUsageAndBuildsPrompt(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/chat", `{"message":"Tell me about the Chess AI project","max_tokens":10000}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "Adam knows Go.", body["response"])
	assert.EqualValues(t, 120, body["tokens_used"])
	assert.EqualValues(t, 100000-120, body["tokens_remaining"])
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))

	require.Len(t, e.provider.calls, 1)
	call := e.provider.calls[0]
	assert.Equal(t, 300, call.MaxTokens, "max_tokens clamped to the per-request cap")
	assert.Contains(t, call.System, "Context from portfolio:\nProject Details:\nName: Chess AI")
	assert.InDelta(t, 0.5, call.Temperature, 1e-9)
}

func TestChat_EmptyMessageSkipsGate(t *testing.T) {
	e := newTestEnv(t)

	for i := 0; i < 10; i++ {
		w := e.do(http.MethodPost, "/api/chat", `{"message":"   "}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Please enter a message.", decode[map[string]any](t, w)["response"])
	}

	assert.Empty(t, e.provider.calls)
	limits := decode[map[string]any](t, e.do(http.MethodGet, "/api/chat/limits", "", nil))
	assert.EqualValues(t, 5, limits["minute_remaining"])
}

func TestChat_InvalidJSON(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/chat", `{"message":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/chat", `{"message":"hi","max_tokens":-3}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_InputTooLongDoesNotConsumeQuota(t *testing.T) {
	e := newTestEnv(t)

	msg := strings.Repeat("é", 501)
	w := e.do(http.MethodPost, "/api/chat", `{"message":"`+msg+`"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "input", decode[map[string]any](t, w)["limit_type"])

	limits := decode[map[string]any](t, e.do(http.MethodGet, "/api/chat/limits", "", nil))
	assert.EqualValues(t, 5, limits["minute_remaining"])
	assert.EqualValues(t, 50, limits["daily_remaining"])
	assert.EqualValues(t, 100000, limits["global_tokens_remaining"])

	// 500 caracteres multibyte ainda passam
	w = e.do(http.MethodPost, "/api/chat", `{"message":"`+strings.Repeat("é", 500)+`"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChat_ProviderErrorIsHiddenAndNotCharged(t *testing.T) {
	e := newTestEnv(t)
	e.provider.err = &llm.ProviderError{Provider: "groq", StatusCode: 500, Err: errors.New("upstream exploded")}

	w := e.do(http.MethodPost, "/api/chat", `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sorry, something went wrong while generating the response.", decode[map[string]any](t, w)["response"])
	assert.NotContains(t, w.Body.String(), "exploded")

	assert.Equal(t, 0, e.budget.Used(e.clock.Now()))
}

func TestChat_DemoReplyRecordsNoUsage(t *testing.T) {
	e := newTestEnv(t)
	e.provider.out = llm.Completion{Text: llm.DemoReply, Demo: true}

	w := e.do(http.MethodPost, "/api/chat", `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, llm.DemoReply, body["response"])
	assert.NotContains(t, body, "tokens_used")
	assert.Equal(t, 0, e.budget.Used(e.clock.Now()))
}

func TestChat_ClientKeyFromForwardedFor(t *testing.T) {
	e := newTestEnv(t)

	for i := 0; i < 5; i++ {
		e.do(http.MethodPost, "/api/chat", `{"message":"hi"}`, map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"})
	}
	w := e.do(http.MethodPost, "/api/chat", `{"message":"hi"}`, map[string]string{"X-Forwarded-For": "198.51.100.1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// outro cliente não é afetado
	w = e.do(http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimits_Shape(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/chat/limits", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"minute_limit": 5, "minute_remaining": 5,
		"daily_limit": 50, "daily_remaining": 50,
		"max_tokens_per_request": 300, "max_input_length": 500,
		"global_tokens_remaining": 100000
	}`, w.Body.String())
}

func TestPortfolio_ServesDocument(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/portfolio", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decode[map[string]any](t, w)
	assert.Contains(t, body, "projects")
}

func TestPortfolio_OffSchemaDocumentServedUnchanged(t *testing.T) {
	const raw = `{"name":"Adam","education":"UIR","skills":{"languages":[{"name":"Go"}]},"projects":[{"name":"Chess AI","details":{"engine":"minimax"}}]}`
	doc, err := portfolio.ParseJSON([]byte(raw))
	require.NoError(t, err)

	h := New(Deps{Portfolio: portfolio.NewStaticStore(doc)})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, raw, w.Body.String())
}

func TestReports_ServeAndTraversal(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/reports/report.pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	for _, target := range []string{"/api/reports/evil.pdf", "/api/reports/..%2Fevil.pdf", "/api/reports/..%2F..%2Fevil.pdf"} {
		w := e.do(http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.NotContains(t, w.Body.String(), "secret", target)
	}

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/reports/notes.txt", "", nil).Code)
}

func TestReports_PercentInNameIsDecodedOnce(t *testing.T) {
	e := newTestEnv(t)
	dir := filepath.Join(e.root, "documents", "internship")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100%.pdf"), []byte("%PDF-percent"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aA.pdf"), []byte("%PDF-other"), 0o600))

	w := e.do(http.MethodGet, "/api/reports/100%25.pdf", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/reports/a%2541.pdf", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOperationalRoutes(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = e.do(http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	e.do(http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)
	w = e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portfolio_http_requests_total")
	assert.Contains(t, w.Body.String(), "portfolio_llm_tokens_used_total 120")

	w = e.do(http.MethodOptions, "/api/chat", "", map[string]string{
		"Origin":                        "https://example.com",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/nope", "", nil).Code)
}
