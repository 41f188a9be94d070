// Package openai implements models.VisionProvider against the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/pixelrelay/internal/config"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

const (
	Name           = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"

	maxTokens       = 4000
	maxResponseBody = 8 << 20
)

// Provider implements models.VisionProvider using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

// NewProvider creates an OpenAI provider. A nil httpClient gets a 60s timeout.
func NewProvider(cfg config.OpenAIConfig, httpClient *http.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Provider{cfg: cfg, client: httpClient}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) HasCredentials() bool { return p.cfg.APIKey != "" }

type chatRequest struct {
	Model          string          `json:"model"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Messages       []message       `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Describe sends the system prompt and image to chat/completions and returns
// the first choice's content. An undecodable success body yields "".
func (p *Provider) Describe(ctx context.Context, req models.VisionRequest) (string, error) {
	body := chatRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages: []message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: []contentPart{{Type: "image_url", ImageURL: &imageURL{URL: req.Image}}}},
		},
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", upstream.Classify(Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readError(resp)
	}

	var cr chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&cr); err != nil {
		return "", nil
	}
	if len(cr.Choices) == 0 {
		return "", nil
	}
	return cr.Choices[0].Message.Content, nil
}

// readError prefers error.message, then error.code, then the HTTP status text.
func readError(resp *http.Response) *upstream.StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, upstream.MaxErrorBody))

	msg := ""
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != nil {
		msg = er.Error.Message
		if msg == "" && er.Error.Code != nil {
			msg = fmt.Sprint(er.Error.Code)
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if msg == "" {
		msg = "OpenAI API error"
	}
	return &upstream.StatusError{Provider: Name, StatusCode: resp.StatusCode, Message: msg}
}

var _ models.VisionProvider = (*Provider)(nil)
