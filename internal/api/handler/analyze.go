package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
	"github.com/kiranshivaraju/pixelrelay/internal/vision"
)

// Analyzer defines the interface the analyze handler depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req vision.AnalyzeRequest) (*vision.Result, error)
}

type analyzeRequest struct {
	Image        string `json:"image"`
	SystemPrompt string `json:"system_prompt"`
	Provider     string `json:"provider"`
	Structured   *bool  `json:"structured"`
}

type analyzeResponse struct {
	Structured map[string]any `json:"structured,omitempty"`
	Prompt     *string        `json:"prompt,omitempty"`
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/analyze.
func NewAnalyzeHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if !decodeBody(w, r, MaxImageBody, &req) {
			return
		}

		result, err := svc.Analyze(r.Context(), vision.AnalyzeRequest{
			Image:        req.Image,
			SystemPrompt: req.SystemPrompt,
			Provider:     req.Provider,
			Structured:   req.Structured,
		})
		if err != nil {
			if errors.Is(err, vision.ErrInvalidRequest) {
				response.Error(w, http.StatusBadRequest, "Need image (data URL)", nil)
				return
			}
			writeServiceError(w, r, err, http.StatusInternalServerError)
			return
		}

		if result.IsStructured() {
			response.JSON(w, http.StatusOK, analyzeResponse{Structured: result.Structured})
			return
		}
		response.JSON(w, http.StatusOK, analyzeResponse{Prompt: &result.Prompt})
	}
}
