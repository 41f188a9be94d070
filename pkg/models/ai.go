// Package models contains shared data models used across the PixelRelay codebase.
package models

import "context"

// VisionProvider is the interface every vision integration implements.
// Handlers never call a concrete provider directly; they go through vision.Service.
type VisionProvider interface {
	// Describe sends the image and instruction to the model and returns the raw text reply.
	Describe(ctx context.Context, req VisionRequest) (string, error)
	// HasCredentials reports whether the provider's API key is configured.
	HasCredentials() bool
	// Name returns the provider identifier ("openai" or "gemini").
	Name() string
}

// VisionRequest is the input to a single vision model call.
type VisionRequest struct {
	Image        string // data URI or bare base64 payload
	SystemPrompt string
	JSON         bool // ask the model for a JSON-only reply
}
