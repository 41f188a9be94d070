package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/pixelrelay/internal/api/handler"
	"github.com/kiranshivaraju/pixelrelay/internal/datauri"
	"github.com/kiranshivaraju/pixelrelay/internal/generation"
	"github.com/kiranshivaraju/pixelrelay/internal/ingest"
	"github.com/kiranshivaraju/pixelrelay/internal/jsonextract"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
	"github.com/kiranshivaraju/pixelrelay/internal/vision"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

// --- fakes ---

type fakeAnalyzer struct {
	fn  func(req vision.AnalyzeRequest) (*vision.Result, error)
	got vision.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req vision.AnalyzeRequest) (*vision.Result, error) {
	f.got = req
	return f.fn(req)
}

type fakeGenerator struct {
	submit func(req generation.Request) (*generation.Submission, error)
	status func(id string) (*models.JobStatus, error)
	got    generation.Request
}

func (f *fakeGenerator) Submit(_ context.Context, req generation.Request) (*generation.Submission, error) {
	f.got = req
	return f.submit(req)
}

func (f *fakeGenerator) Status(_ context.Context, id string) (*models.JobStatus, error) {
	return f.status(id)
}

type fakeFetcher func(rawURL string) (string, error)

func (f fakeFetcher) Fetch(_ context.Context, rawURL string) (string, error) { return f(rawURL) }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeProvider struct {
	name  string
	creds bool
}

func (p fakeProvider) Name() string         { return p.name }
func (p fakeProvider) HasCredentials() bool { return p.creds }

// --- helpers ---

func post(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

const img = "data:image/png;base64,iVBORw0KGgo="

// ========================================
// Analyze
// ========================================

func TestAnalyze_Structured(t *testing.T) {
	a := &fakeAnalyzer{fn: func(vision.AnalyzeRequest) (*vision.Result, error) {
		return &vision.Result{Structured: map[string]any{"a": float64(1)}}, nil
	}}

	w := post(t, handler.NewAnalyzeHandler(a), map[string]any{
		"image": img, "system_prompt": "sp", "provider": "gemini",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]any{"a": float64(1)}, body["structured"])
	assert.NotContains(t, body, "prompt")

	assert.Equal(t, img, a.got.Image)
	assert.Equal(t, "sp", a.got.SystemPrompt)
	assert.Equal(t, "gemini", a.got.Provider)
	assert.Nil(t, a.got.Structured)
}

func TestAnalyze_FreeText(t *testing.T) {
	a := &fakeAnalyzer{fn: func(vision.AnalyzeRequest) (*vision.Result, error) {
		return &vision.Result{Prompt: "a cat"}, nil
	}}

	w := post(t, handler.NewAnalyzeHandler(a), `{"image":"`+img+`","structured":false}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "a cat", body["prompt"])
	assert.NotContains(t, body, "structured")
	require.NotNil(t, a.got.Structured)
	assert.False(t, *a.got.Structured)
}

func TestAnalyze_Errors(t *testing.T) {
	pos := int64(7)
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
		wantDebug bool
	}{
		{"missing image", vision.ErrInvalidRequest, 400, "Need image (data URL)", false},
		{"missing key", &upstream.CredentialError{Name: "OPENAI_API_KEY"}, 500, "OPENAI_API_KEY not set", false},
		{"upstream status", &upstream.StatusError{Provider: "openai", StatusCode: 429, Message: "Rate limit reached"}, 429, "Rate limit reached", false},
		{"empty content", vision.ErrNoContent, 502, "No response content", true},
		{"bad json", &jsonextract.ParseError{RawPreview: "x", RawLength: 1, CleanedPreview: "x", Message: "boom", Position: &pos}, 502, "Invalid JSON in structured response", true},
		{"malformed image", fmt.Errorf("decoding: %w", datauri.ErrMalformed), 400, "Invalid image data URL", false},
		{"transport", fmt.Errorf("%w: openai: dial tcp", upstream.ErrUnreachable), 500, "upstream unreachable: openai: dial tcp", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{fn: func(vision.AnalyzeRequest) (*vision.Result, error) { return nil, tt.err }}
			w := post(t, handler.NewAnalyzeHandler(a), map[string]any{"image": img})

			assert.Equal(t, tt.wantCode, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantDebug {
				assert.Contains(t, body, "debug")
			} else {
				assert.NotContains(t, body, "debug")
			}
		})
	}
}

func TestAnalyze_ParseErrorDebugShape(t *testing.T) {
	pos := int64(3)
	a := &fakeAnalyzer{fn: func(vision.AnalyzeRequest) (*vision.Result, error) {
		return nil, &jsonextract.ParseError{RawPreview: "raw", RawLength: 3, CleanedPreview: "cl", Message: "bad", Position: &pos}
	}}

	w := post(t, handler.NewAnalyzeHandler(a), map[string]any{"image": img})
	debug, ok := decode(t, w)["debug"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "raw", debug["raw_preview"])
	assert.Equal(t, float64(3), debug["raw_length"])
	assert.Equal(t, "cl", debug["cleaned_preview"])
	assert.Equal(t, "bad", debug["parse_error"])
	assert.Equal(t, float64(3), debug["parse_position"])
}

func TestAnalyze_NoContentDebugIsEmptyObject(t *testing.T) {
	a := &fakeAnalyzer{fn: func(vision.AnalyzeRequest) (*vision.Result, error) { return nil, vision.ErrNoContent }}
	w := post(t, handler.NewAnalyzeHandler(a), map[string]any{"image": img})
	assert.JSONEq(t, `{"error":"No response content","debug":{}}`, w.Body.String())
}

// ========================================
// Body decoding
// ========================================

func TestDecode_MalformedJSON(t *testing.T) {
	a := &fakeAnalyzer{fn: func(vision.AnalyzeRequest) (*vision.Result, error) { t.Fatal("must not be called"); return nil, nil }}
	w := post(t, handler.NewAnalyzeHandler(a), `{"image":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, w)["error"])
}

func TestDecode_EmptyBodyIsMissingField(t *testing.T) {
	a := &fakeAnalyzer{fn: func(req vision.AnalyzeRequest) (*vision.Result, error) {
		assert.Empty(t, req.Image)
		return nil, vision.ErrInvalidRequest
	}}
	w := post(t, handler.NewAnalyzeHandler(a), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecode_TooLarge(t *testing.T) {
	f := fakeFetcher(func(string) (string, error) { t.Fatal("must not be called"); return "", nil })
	big := `{"url":"` + strings.Repeat("a", handler.MaxURLBody) + `"}`
	w := post(t, handler.NewFetchImageHandler(f), big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// ========================================
// Generate / Status
// ========================================

func TestGenerate_PassesRequest(t *testing.T) {
	g := &fakeGenerator{submit: func(generation.Request) (*generation.Submission, error) {
		return &generation.Submission{PredictionID: "p1"}, nil
	}}

	w := post(t, handler.NewGenerateHandler(g), `{"prompt":"p","image":"`+img+`","model":" sdxl ","prompt_strength":"0.5","seed":7,"negative_prompt":"blur"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prediction_id":"p1"}`, w.Body.String())
	assert.Equal(t, "p", g.got.Prompt)
	assert.Equal(t, generation.ModelKey("sdxl"), g.got.Model)
	assert.Equal(t, generation.Num(0.5), g.got.PromptStrength)
	assert.Equal(t, generation.Num(7), g.got.Seed)
	assert.Equal(t, generation.Str("blur"), g.got.NegativePrompt)
}

func TestGenerate_UnknownModelFallsBack(t *testing.T) {
	g := &fakeGenerator{submit: func(generation.Request) (*generation.Submission, error) {
		return &generation.Submission{ImageURL: "http://x/img.png"}, nil
	}}
	w := post(t, handler.NewGenerateHandler(g), `{"prompt":"p","image":"i","model":"nope"}`)
	assert.JSONEq(t, `{"image_url":"http://x/img.png"}`, w.Body.String())
	assert.Equal(t, generation.DefaultModel, g.got.Model)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid", generation.ErrInvalidRequest, 400, `{"error":"Need prompt and image (data URL)"}`},
		{"credential", &upstream.CredentialError{Name: generation.TokenEnv}, 500, `{"error":"REPLICATE_API_TOKEN not set"}`},
		{"upstream", &upstream.StatusError{Provider: "replicate", StatusCode: 422, Message: `{"detail":"bad input"}`}, 422, `{"error":"{\"detail\":\"bad input\"}"}`},
		{"no handle", &generation.NoHandleError{Status: "starting"}, 502, `{"error":"No prediction id","status":"starting"}`},
		{"unexpected", errors.New("decoding prediction: EOF"), 500, `{"error":"decoding prediction: EOF"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGenerator{submit: func(generation.Request) (*generation.Submission, error) { return nil, tt.err }}
			w := post(t, handler.NewGenerateHandler(g), `{"prompt":"p","image":"i"}`)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		st       *models.JobStatus
		err      error
		wantCode int
		wantBody string
	}{
		{"succeeded", "?id=abc", &models.JobStatus{State: models.JobStateSucceeded, Label: "succeeded", ImageURL: "http://x/1.png"}, nil, 200, `{"status":"succeeded","image_url":"http://x/1.png"}`},
		{"failed", "?id=abc", &models.JobStatus{State: models.JobStateFailed, Label: "failed", Error: "CUDA out of memory"}, nil, 200, `{"status":"failed","error":"CUDA out of memory"}`},
		{"pending", "?id=abc", &models.JobStatus{State: models.JobStatePending, Label: "processing"}, nil, 200, `{"status":"processing"}`},
		{"missing id", "", nil, generation.ErrInvalidRequest, 400, `{"error":"Need query id (prediction_id)"}`},
		{"credential", "?id=abc", nil, &upstream.CredentialError{Name: generation.TokenEnv}, 500, `{"error":"REPLICATE_API_TOKEN not set"}`},
		{"upstream 404", "?id=abc", nil, &upstream.StatusError{Provider: "replicate", StatusCode: 404, Message: "Not found"}, 404, `{"error":"Not found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			g := &fakeGenerator{status: func(id string) (*models.JobStatus, error) {
				gotID = id
				return tt.st, tt.err
			}}
			req := httptest.NewRequest(http.MethodGet, "/api/status"+tt.query, nil)
			w := httptest.NewRecorder()
			handler.NewStatusHandler(g)(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			if tt.query != "" {
				assert.Equal(t, "abc", gotID)
			}
		})
	}
}

// ========================================
// Fetch image
// ========================================

func TestFetchImage(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		err      error
		wantCode int
		wantBody string
	}{
		{"ok", "data:image/jpeg;base64,AAEC", nil, 200, `{"dataUrl":"data:image/jpeg;base64,AAEC"}`},
		{"missing", "", ingest.ErrMissingURL, 400, `{"error":"Need url"}`},
		{"invalid", "", ingest.ErrInvalidURL, 400, `{"error":"Invalid url"}`},
		{"forbidden", "", fmt.Errorf("%w: evil.com", ingest.ErrHostNotAllowed), 403, `{"error":"Host not allowed"}`},
		{"upstream", "", &upstream.StatusError{Provider: "fetch", StatusCode: 404, Message: "Upstream: 404"}, 404, `{"error":"Upstream: 404"}`},
		{"too large", "", ingest.ErrTooLarge, 502, `{"error":"Upstream image too large"}`},
		{"unreachable", "", fmt.Errorf("%w: fetch: dial tcp", upstream.ErrUnreachable), 502, `{"error":"upstream unreachable: fetch: dial tcp"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fakeFetcher(func(u string) (string, error) {
				assert.Equal(t, "https://selstorage.ru/a.jpg", u)
				return tt.result, tt.err
			})
			w := post(t, handler.NewFetchImageHandler(f), map[string]string{"url": "https://selstorage.ru/a.jpg"})
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

// ========================================
// Health
// ========================================

func TestHealth_OK(t *testing.T) {
	h := handler.NewHealthHandler(
		map[string]handler.Pinger{"redis": fakePinger{}, "limiter": nil},
		[]handler.CredentialedProvider{fakeProvider{"openai", true}, fakeProvider{"replicate", false}},
	)
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "ok",
		"services": {"redis": "ok", "limiter": "disabled"},
		"providers": {"openai": "configured", "replicate": "missing_credentials"}
	}`, w.Body.String())
}

func TestHealth_Degraded(t *testing.T) {
	h := handler.NewHealthHandler(map[string]handler.Pinger{"redis": fakePinger{err: errors.New("down")}}, nil)
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}
