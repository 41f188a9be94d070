package vision

import (
	"net/http"

	"github.com/kiranshivaraju/pixelrelay/internal/config"
	"github.com/kiranshivaraju/pixelrelay/internal/vision/gemini"
	"github.com/kiranshivaraju/pixelrelay/internal/vision/openai"
	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

// Registry holds the configured vision providers. OpenAI is the default.
type Registry struct {
	openai models.VisionProvider
	gemini models.VisionProvider
}

// ClientFunc returns the HTTP client a named provider should use. It may
// return nil for the provider default.
type ClientFunc func(provider string) *http.Client

// NewRegistry constructs both providers from config. Called once at server startup.
func NewRegistry(cfg config.VisionConfig, clientFor ClientFunc) *Registry {
	if clientFor == nil {
		clientFor = func(string) *http.Client { return nil }
	}
	return &Registry{
		openai: openai.NewProvider(cfg.OpenAI, clientFor(openai.Name)),
		gemini: gemini.NewProvider(cfg.Gemini, clientFor(gemini.Name)),
	}
}

// NewRegistryWith builds a Registry from existing providers.
func NewRegistryWith(openaiProvider, geminiProvider models.VisionProvider) *Registry {
	return &Registry{openai: openaiProvider, gemini: geminiProvider}
}

// Get returns the Gemini provider for "gemini" and OpenAI for anything else.
func (r *Registry) Get(name string) models.VisionProvider {
	if name == gemini.Name {
		return r.gemini
	}
	return r.openai
}

// Providers lists every registered provider.
func (r *Registry) Providers() []models.VisionProvider {
	return []models.VisionProvider{r.openai, r.gemini}
}

var credentialEnv = map[string]string{
	openai.Name: "OPENAI_API_KEY",
	gemini.Name: "GEMINI_API_KEY",
}
