package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
	"github.com/kiranshivaraju/pixelrelay/internal/ingest"
)

// ImageFetcher defines the interface the fetch-image handler depends on.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// NewFetchImageHandler returns an http.HandlerFunc for POST /api/fetch-image.
func NewFetchImageHandler(f ImageFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if !decodeBody(w, r, MaxURLBody, &req) {
			return
		}

		dataURL, err := f.Fetch(r.Context(), req.URL)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrMissingURL):
				response.Error(w, http.StatusBadRequest, "Need url", nil)
			case errors.Is(err, ingest.ErrInvalidURL):
				response.Error(w, http.StatusBadRequest, "Invalid url", nil)
			case errors.Is(err, ingest.ErrHostNotAllowed):
				response.Error(w, http.StatusForbidden, "Host not allowed", nil)
			default:
				writeServiceError(w, r, err, http.StatusBadGateway)
			}
			return
		}

		response.JSON(w, http.StatusOK, map[string]string{"dataUrl": dataURL})
	}
}
