// Package gemini implements models.VisionProvider with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/kiranshivaraju/pixelrelay/internal/config"
	"github.com/kiranshivaraju/pixelrelay/internal/datauri"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

const (
	Name         = "gemini"
	DefaultModel = "gemini-1.5-flash"

	// JSONSuffix is appended to the instruction when a JSON-only reply is requested.
	JSONSuffix = "\n\nReturn ONLY valid JSON. No markdown. No extra text."

	maxOutputTokens = 8192
)

// Provider implements models.VisionProvider using Gemini.
type Provider struct {
	cfg        config.GeminiConfig
	httpClient *http.Client

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewProvider creates a Gemini provider. The SDK client is built on first use so a
// missing key does not fail startup. A nil httpClient gets a 60s timeout.
func NewProvider(cfg config.GeminiConfig, httpClient *http.Client) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Provider{cfg: cfg, httpClient: httpClient}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) HasCredentials() bool { return p.cfg.APIKey != "" }

func (p *Provider) sdk(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      p.cfg.APIKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPClient:  p.httpClient,
			HTTPOptions: genai.HTTPOptions{BaseURL: p.cfg.BaseURL},
		})
	})
	return p.client, p.clientErr
}

// Describe sends the image as an inline blob followed by the instruction text and
// returns the first part of the first candidate.
func (p *Provider) Describe(ctx context.Context, req models.VisionRequest) (string, error) {
	mediaType, data, err := datauri.Decode(req.Image)
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	client, err := p.sdk(ctx)
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}

	text := req.SystemPrompt
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: maxOutputTokens}
	if req.JSON {
		text += JSONSuffix
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mediaType, Data: data}},
			genai.NewPartFromText(text),
		}, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, p.cfg.Model, contents, cfg)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// classify turns SDK API errors into upstream.StatusError and everything else
// into a transport error.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(*apiErrPtr)
	}
	return upstream.Classify(Name, err)
}

func statusError(e genai.APIError) *upstream.StatusError {
	msg := e.Message
	if msg == "" {
		msg = e.Status
	}
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	if msg == "" {
		msg = "Gemini API error"
	}
	code := e.Code
	if code == 0 {
		code = http.StatusBadGateway
	}
	return &upstream.StatusError{Provider: Name, StatusCode: code, Message: msg}
}

var _ models.VisionProvider = (*Provider)(nil)
