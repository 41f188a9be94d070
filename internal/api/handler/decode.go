package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
)

// Request body limits.
const (
	MaxImageBody = 10 << 20
	MaxURLBody   = 1 << 20
)

// decodeBody reads a JSON object of at most limit bytes into dst. An empty
// body leaves dst zero. On failure it writes 413 or 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return false
	}
	response.Error(w, http.StatusBadRequest, "Invalid JSON body", nil)
	return false
}
