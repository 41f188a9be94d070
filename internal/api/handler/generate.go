package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
	"github.com/kiranshivaraju/pixelrelay/internal/generation"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

// Generator defines the interface the generate and status handlers depend on.
type Generator interface {
	Submit(ctx context.Context, req generation.Request) (*generation.Submission, error)
	Status(ctx context.Context, id string) (*models.JobStatus, error)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
	Model  string `json:"model"`
	generation.Tunables
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/generate.
func NewGenerateHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if !decodeBody(w, r, MaxImageBody, &req) {
			return
		}

		sub, err := svc.Submit(r.Context(), generation.Request{
			Prompt:   req.Prompt,
			Image:    req.Image,
			Model:    generation.ParseModelKey(strings.TrimSpace(req.Model)),
			Tunables: req.Tunables,
		})
		if err != nil {
			if errors.Is(err, generation.ErrInvalidRequest) {
				response.Error(w, http.StatusBadRequest, "Need prompt and image (data URL)", nil)
				return
			}
			writeServiceError(w, r, err, http.StatusInternalServerError)
			return
		}

		response.JSON(w, http.StatusOK, sub)
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/status?id=.
func NewStatusHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Status(r.Context(), r.URL.Query().Get("id"))
		if err != nil {
			if errors.Is(err, generation.ErrInvalidRequest) {
				response.Error(w, http.StatusBadRequest, "Need query id (prediction_id)", nil)
				return
			}
			writeServiceError(w, r, err, http.StatusInternalServerError)
			return
		}

		response.JSON(w, http.StatusOK, st)
	}
}
