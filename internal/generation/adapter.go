package generation

import (
	"errors"
	"math"
	"strings"
)

// ErrInvalidRequest is returned when a request is missing its prompt, image or job id.
var ErrInvalidRequest = errors.New("invalid generation request")

const (
	DefaultPromptStrength = 0.8
	MinPromptStrength     = 0.1
	MaxPromptStrength     = 1.0
	MinSteps              = 10
	MaxSteps              = 50
	MinGuidanceScale      = 1.0
	MaxGuidanceScale      = 15.0
	MinOutputQuality      = 1
	MaxOutputQuality      = 100
)

// Request is a client generation request.
type Request struct {
	Prompt string
	Image  string // data URI or URL, forwarded as-is
	Model  ModelKey
	Tunables
}

// Payload is the body sent to POST /predictions.
type Payload struct {
	Version string
	Input   any
}

// DiffusionInput is the input schema shared by flux_img2img and sdxl.
type DiffusionInput struct {
	Prompt            string   `json:"prompt"`
	Image             string   `json:"image"`
	PromptStrength    float64  `json:"prompt_strength"`
	NumInferenceSteps int      `json:"num_inference_steps"`
	Seed              *int64   `json:"seed,omitempty"`
	NegativePrompt    string   `json:"negative_prompt,omitempty"`
	GuidanceScale     *float64 `json:"guidance_scale,omitempty"`
	OutputFormat      string   `json:"output_format,omitempty"`
	OutputQuality     *int     `json:"output_quality,omitempty"`
}

// NanoBananaInput is the nano_banana input schema.
type NanoBananaInput struct {
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input"`
	AspectRatio  string   `json:"aspect_ratio"`
	OutputFormat string   `json:"output_format"`
}

// GPTImageInput is the gpt_image_1_5 input schema.
type GPTImageInput struct {
	Prompt        string   `json:"prompt"`
	InputImages   []string `json:"input_images"`
	OutputFormat  string   `json:"output_format"`
	Quality       string   `json:"quality"`
	InputFidelity string   `json:"input_fidelity"`
}

// Validate checks the required fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" || r.Image == "" {
		return ErrInvalidRequest
	}
	return nil
}

// BuildPayload produces the Replicate payload for r. It performs no I/O.
func BuildPayload(r Request) (Payload, error) {
	if err := r.Validate(); err != nil {
		return Payload{}, err
	}
	p := r.Model.Profile()
	prompt := strings.TrimSpace(r.Prompt)

	switch p.Family {
	case FamilyNanoBanana:
		return Payload{Version: p.Version, Input: NanoBananaInput{
			Prompt:       prompt,
			ImageInput:   []string{r.Image},
			AspectRatio:  "match_input_image",
			OutputFormat: outputFormatOr(r.OutputFormat, p.DefaultOutputFormat),
		}}, nil
	case FamilyGPTImage:
		return Payload{Version: p.Version, Input: GPTImageInput{
			Prompt:        prompt,
			InputImages:   []string{r.Image},
			OutputFormat:  outputFormatOr(r.OutputFormat, p.DefaultOutputFormat),
			Quality:       "high",
			InputFidelity: "high",
		}}, nil
	}

	in := DiffusionInput{
		Prompt:            prompt,
		Image:             r.Image,
		PromptStrength:    DefaultPromptStrength,
		NumInferenceSteps: p.DefaultSteps,
	}
	if r.PromptStrength.Valid {
		in.PromptStrength = clamp(r.PromptStrength.Value, MinPromptStrength, MaxPromptStrength)
	}
	if r.Steps.Valid {
		in.NumInferenceSteps = int(math.Trunc(clamp(r.Steps.Value, MinSteps, MaxSteps)))
	}
	if r.Seed.Valid && r.Seed.Value >= 0 && r.Seed.Value < math.MaxInt64 {
		seed := int64(math.Trunc(r.Seed.Value))
		in.Seed = &seed
	}
	if r.NegativePrompt.Valid {
		in.NegativePrompt = r.NegativePrompt.Value
	}
	if r.GuidanceScale.Valid && r.GuidanceScale.Value >= MinGuidanceScale {
		g := math.Min(r.GuidanceScale.Value, MaxGuidanceScale)
		in.GuidanceScale = &g
	}
	if f, ok := normalizeOutputFormat(r.OutputFormat); ok {
		in.OutputFormat = f
	}
	if r.OutputQuality.Valid {
		if q := math.Trunc(r.OutputQuality.Value); q >= MinOutputQuality {
			v := int(math.Min(q, MaxOutputQuality))
			in.OutputQuality = &v
		}
	}
	return Payload{Version: p.Version, Input: in}, nil
}

func normalizeOutputFormat(t Text) (string, bool) {
	if !t.Valid {
		return "", false
	}
	f := strings.ToLower(t.Value)
	switch f {
	case "jpg", "jpeg", "png", "webp":
		return f, true
	}
	return "", false
}

func outputFormatOr(t Text, def string) string {
	if f, ok := normalizeOutputFormat(t); ok {
		return f
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
