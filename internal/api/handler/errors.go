package handler

import (
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/kiranshivaraju/pixelrelay/internal/api/middleware"
	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
	"github.com/kiranshivaraju/pixelrelay/internal/datauri"
	"github.com/kiranshivaraju/pixelrelay/internal/generation"
	"github.com/kiranshivaraju/pixelrelay/internal/ingest"
	"github.com/kiranshivaraju/pixelrelay/internal/jsonextract"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
	"github.com/kiranshivaraju/pixelrelay/internal/vision"
)

// writeServiceError maps a service error onto the shared error body.
// transportStatus is used for network failures that never reached a provider.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, transportStatus int) {
	var (
		statusErr *upstream.StatusError
		credErr   *upstream.CredentialError
		parseErr  *jsonextract.ParseError
		noHandle  *generation.NoHandleError
	)

	switch {
	case errors.As(err, &statusErr):
		slog.Warn("upstream rejected request",
			"provider", statusErr.Provider,
			"status", statusErr.StatusCode,
			"request_id", mw.GetRequestID(r),
		)
		response.Error(w, statusErr.StatusCode, statusErr.Message, nil)
	case errors.As(err, &credErr):
		response.Error(w, http.StatusInternalServerError, credErr.Error(), nil)
	case errors.As(err, &parseErr):
		response.Error(w, http.StatusBadGateway, "Invalid JSON in structured response", parseErr.Debug())
	case errors.Is(err, vision.ErrNoContent):
		response.Error(w, http.StatusBadGateway, "No response content", map[string]any{})
	case errors.As(err, &noHandle):
		response.JSON(w, http.StatusBadGateway, map[string]any{
			"error":  "No prediction id",
			"status": noHandle.Status,
		})
	case errors.Is(err, datauri.ErrMalformed):
		response.Error(w, http.StatusBadRequest, "Invalid image data URL", nil)
	case errors.Is(err, ingest.ErrTooLarge):
		response.Error(w, http.StatusBadGateway, "Upstream image too large", nil)
	case errors.Is(err, upstream.ErrCanceled):
		slog.Info("request canceled by client", "path", r.URL.Path, "request_id", mw.GetRequestID(r))
		response.Error(w, transportStatus, err.Error(), nil)
	case upstream.IsTransport(err):
		slog.Error("upstream unreachable", "error", err, "request_id", mw.GetRequestID(r))
		response.Error(w, transportStatus, err.Error(), nil)
	default:
		slog.Error("unexpected error", "error", err, "path", r.URL.Path, "request_id", mw.GetRequestID(r))
		response.Error(w, http.StatusInternalServerError, err.Error(), nil)
	}
}
