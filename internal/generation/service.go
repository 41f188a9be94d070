package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/pixelrelay/internal/replicate"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
)

// TokenEnv is the environment variable holding the Replicate API token.
const TokenEnv = "REPLICATE_API_TOKEN"

// Submission is the outcome of a successful submit: either a finished image
// or a prediction id to poll.
type Submission struct {
	ImageURL     string `json:"image_url,omitempty"`
	PredictionID string `json:"prediction_id,omitempty"`
}

// NoHandleError is returned when Replicate accepted a prediction but returned
// neither an output nor an id.
type NoHandleError struct {
	Status string
}

func (e *NoHandleError) Error() string {
	return fmt.Sprintf("no prediction id (status %q)", e.Status)
}

// Service submits generation requests and reads their status.
type Service struct {
	client replicate.Client
}

// NewService creates a Service backed by client.
func NewService(client replicate.Client) *Service {
	return &Service{client: client}
}

// Submit validates r, creates one prediction and returns its result or handle.
// It never retries.
func (s *Service) Submit(ctx context.Context, r Request) (*Submission, error) {
	payload, err := BuildPayload(r)
	if err != nil {
		return nil, err
	}
	if !s.client.HasCredentials() {
		return nil, &upstream.CredentialError{Name: TokenEnv}
	}

	pred, err := s.client.CreatePrediction(ctx, replicate.CreateRequest{
		Version: payload.Version,
		Input:   payload.Input,
	})
	if err != nil {
		return nil, err
	}

	if pred.Status == replicate.StatusSucceeded {
		if img := pred.ImageURL(); img != "" {
			return &Submission{ImageURL: img}, nil
		}
	}
	if pred.ID == "" {
		slog.Warn("prediction created without id", "status", pred.Status, "model", r.Model.Profile().Key)
		return nil, &NoHandleError{Status: pred.Status}
	}
	return &Submission{PredictionID: pred.ID}, nil
}
