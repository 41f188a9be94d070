// Package vision runs image analysis through a vision model and shapes the reply
// into either a structured scene description or a free-text generation prompt.
package vision

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/pixelrelay/internal/jsonextract"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
	"github.com/kiranshivaraju/pixelrelay/internal/vision/prompts"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

var (
	ErrInvalidRequest = errors.New("image is required")
	ErrNoContent      = errors.New("no response content")
)

// AnalyzeRequest is a client analysis request. A nil Structured means true.
type AnalyzeRequest struct {
	Image        string
	SystemPrompt string
	Provider     string
	Structured   *bool
}

// Result holds exactly one of Structured or Prompt.
type Result struct {
	Structured map[string]any
	Prompt     string
}

// IsStructured reports whether the result carries a parsed JSON object.
func (r *Result) IsStructured() bool { return r.Structured != nil }

// Service routes analysis requests to a provider from the registry.
type Service struct {
	providers *Registry
}

func NewService(providers *Registry) *Service {
	return &Service{providers: providers}
}

// Analyze makes one provider call. Upstream errors are returned unchanged;
// JSON extraction failures are returned as *jsonextract.ParseError.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	if req.Image == "" {
		return nil, ErrInvalidRequest
	}
	structured := req.Structured == nil || *req.Structured

	systemPrompt := strings.TrimSpace(req.SystemPrompt)
	if systemPrompt == "" {
		if structured {
			systemPrompt = prompts.Structured()
		} else {
			systemPrompt = prompts.FreeText()
		}
	}

	provider := s.providers.Get(req.Provider)
	if !provider.HasCredentials() {
		return nil, &upstream.CredentialError{Name: credentialName(provider.Name())}
	}

	raw, err := provider.Describe(ctx, models.VisionRequest{
		Image:        req.Image,
		SystemPrompt: systemPrompt,
		JSON:         structured,
	})
	if err != nil {
		return nil, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoContent
	}
	if !structured {
		return &Result{Prompt: raw}, nil
	}

	obj, err := jsonextract.Parse(raw)
	if err != nil {
		var pe *jsonextract.ParseError
		if errors.As(err, &pe) {
			slog.Error("structured response is not valid JSON",
				"provider", provider.Name(),
				"raw_length", pe.RawLength,
				"error", pe.Message,
			)
		}
		return nil, err
	}
	return &Result{Structured: obj}, nil
}

func credentialName(provider string) string {
	if name, ok := credentialEnv[provider]; ok {
		return name
	}
	return strings.ToUpper(provider) + "_API_KEY"
}
