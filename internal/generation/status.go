package generation

import (
	"context"
	"strings"

	"github.com/kiranshivaraju/pixelrelay/internal/replicate"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

const genericFailure = "Generation failed"

// Status performs exactly one upstream read for prediction id and normalizes it.
func (s *Service) Status(ctx context.Context, id string) (*models.JobStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	if !s.client.HasCredentials() {
		return nil, &upstream.CredentialError{Name: TokenEnv}
	}
	pred, err := s.client.GetPrediction(ctx, id)
	if err != nil {
		return nil, err
	}
	st := Normalize(pred)
	return &st, nil
}

// Normalize maps a prediction onto the three job states.
func Normalize(p *replicate.Prediction) models.JobStatus {
	switch p.Status {
	case replicate.StatusSucceeded:
		if img := p.ImageURL(); img != "" {
			return models.JobStatus{State: models.JobStateSucceeded, Label: p.Status, ImageURL: img}
		}
	case replicate.StatusFailed, replicate.StatusCanceled:
		msg := p.ErrorText()
		if msg == "" {
			msg = p.LogText()
		}
		if msg == "" {
			msg = genericFailure
		}
		return models.JobStatus{State: models.JobStateFailed, Label: p.Status, Error: msg}
	}

	label := p.Status
	if label == "" {
		label = replicate.StatusStarting
	}
	return models.JobStatus{State: models.JobStatePending, Label: label}
}
