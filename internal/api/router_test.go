package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/pixelrelay/internal/api"
	mw "github.com/kiranshivaraju/pixelrelay/internal/api/middleware"
	"github.com/kiranshivaraju/pixelrelay/internal/metrics"
)

func okJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func newTestRouter(deps api.Dependencies) http.Handler {
	if deps.HealthHandler == nil {
		deps.HealthHandler = okJSON(`{"status":"ok"}`)
	}
	return api.NewRouter(deps)
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(mw.RequestIDHeader))
}

func TestRouter_Preflight(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	tests := []struct {
		path    string
		methods string
	}{
		{"/api/analyze", "POST, OPTIONS"},
		{"/api/generate", "POST, OPTIONS"},
		{"/api/status", "GET, OPTIONS"},
		{"/api/fetch-image", "POST, OPTIONS"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Body.String())
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.methods, w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/analyze"},
		{"PUT", "/api/generate"},
		{"POST", "/api/status"},
		{"DELETE", "/api/fetch-image"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Method not allowed", body["error"])
		})
	}
}

func TestRouter_NotImplementedWhenHandlerMissing(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	req := httptest.NewRequest("GET", "/api/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestRouter_RateLimitAppliesToProxyRoutesOnly(t *testing.T) {
	router := newTestRouter(api.Dependencies{
		RateLimit:     mw.NewRateLimit(mw.NewLocalLimiter(1), nil),
		StatusHandler: okJSON(`{"status":"starting"}`),
		HealthHandler: okJSON(`{"status":"ok"}`),
	})

	get := func(path string) int {
		req := httptest.NewRequest("GET", path, nil)
		req.RemoteAddr = "10.1.1.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/status?id=a"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/status?id=a"))
	assert.Equal(t, http.StatusOK, get("/api/health"))
	assert.Equal(t, http.StatusOK, get("/api/health"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	m := metrics.NewCollector("pixelrelay")
	router := newTestRouter(api.Dependencies{
		Metrics:       m,
		StatusHandler: okJSON(`{"status":"starting"}`),
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/status?id=x", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pixelrelay_http_requests_total{method="GET",route="/api/status",status="2xx"} 1`)
}
