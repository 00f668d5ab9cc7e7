package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/rightsdesk/internal/api"
	mw "github.com/kiranshivaraju/rightsdesk/internal/api/middleware"
	"github.com/kiranshivaraju/rightsdesk/internal/cache"
	"github.com/kiranshivaraju/rightsdesk/internal/metrics"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// --- stub cache that counts rate-limit hits per key ---

type stubCache struct {
	counts map[string]int64
}

func newStubCache() *stubCache { return &stubCache{counts: map[string]int64{}} }

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) SetRunProgress(_ context.Context, _ models.Run, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetRunProgress(_ context.Context, _ uuid.UUID) (*models.Run, bool, error) {
	return nil, false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.counts[key]++
	return c.counts[key], nil
}

// --- router tests ---

func named(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(name))
	}
}

func newTestRouter(c cache.Cache, perMin int) http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit:            mw.NewRateLimit(c, perMin, nil),
		HealthHandler:        named("health"),
		ListAppsHandler:      named("apps"),
		ListPromptsHandler:   named("prompts"),
		CreateSessionHandler: named("create-session"),
		GetSessionHandler:    named("get-session"),
		CloseSessionHandler:  named("close-session"),
		SubmitMessageHandler: named("submit-message"),
		TranscriptHandler:    named("transcript"),
		SubmitAssetHandler:   named("submit-asset"),
		ListAssetsHandler:    named("list-assets"),
		GetRunHandler:        named("get-run"),
		CancelRunHandler:     named("cancel-run"),
		EventsHandler:        named("events"),
	})
}

func TestRouter_RouteTable(t *testing.T) {
	router := newTestRouter(newStubCache(), 1000)
	sid := uuid.New().String()
	rid := uuid.New().String()

	routes := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/api/v1/health", "health"},
		{"GET", "/api/v1/catalog/apps", "apps"},
		{"GET", "/api/v1/catalog/prompts", "prompts"},
		{"POST", "/api/v1/sessions", "create-session"},
		{"GET", "/api/v1/sessions/" + sid, "get-session"},
		{"DELETE", "/api/v1/sessions/" + sid, "close-session"},
		{"POST", "/api/v1/sessions/" + sid + "/messages", "submit-message"},
		{"GET", "/api/v1/sessions/" + sid + "/messages", "transcript"},
		{"POST", "/api/v1/sessions/" + sid + "/assets", "submit-asset"},
		{"GET", "/api/v1/sessions/" + sid + "/assets", "list-assets"},
		{"GET", "/api/v1/sessions/" + sid + "/runs/" + rid, "get-run"},
		{"DELETE", "/api/v1/sessions/" + sid + "/runs/" + rid, "cancel-run"},
		{"GET", "/api/v1/sessions/" + sid + "/events", "events"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, rt.want, w.Body.String())
		})
	}
}

func TestRouter_SessionRoutesLimitedPerSession(t *testing.T) {
	c := newStubCache()
	router := newTestRouter(c, 2)
	a, b := uuid.New().String(), uuid.New().String()

	codes := func(sid string, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/messages", nil))
			out = append(out, w.Code)
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes(a, 3))
	assert.Equal(t, []int{200, 200}, codes(b, 2))
	assert.Equal(t, int64(3), c.counts["ratelimit:session:"+a])

	// catalog routes are not limited
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/apps", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRouter_NotImplementedPlaceholder(t *testing.T) {
	router := api.NewRouter(api.Dependencies{})

	req := httptest.NewRequest("GET", "/api/v1/catalog/apps", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(newStubCache(), 60)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(newStubCache(), 60)

	req := httptest.NewRequest("PUT", "/api/v1/catalog/apps", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	router := api.NewRouter(api.Dependencies{
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		HealthHandler:  named("health"),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `rightsdesk_http_requests_total{code="200",method="GET"} 1`)
}

var _ cache.Cache = (*stubCache)(nil)
