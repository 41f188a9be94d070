package generation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is an optional numeric tunable. It accepts a JSON number or a numeric
// string; null, empty strings and anything unparseable leave it unset.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a set Number.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*n = Num(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			*n = Num(f)
		}
	}
	return nil
}

// Text is an optional string tunable. Blank strings and non-string JSON values
// leave it unset. Value is trimmed.
type Text struct {
	Value string
	Valid bool
}

// Str returns a Text set to the trimmed s, or an unset Text if s is blank.
func Str(s string) Text {
	s = strings.TrimSpace(s)
	return Text{Value: s, Valid: s != ""}
}

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	*t = Str(s)
	return nil
}

// Tunables are the optional per-request generation parameters. Models that do
// not support a parameter ignore it.
type Tunables struct {
	PromptStrength Number `json:"prompt_strength"`
	Steps          Number `json:"num_inference_steps"`
	Seed           Number `json:"seed"`
	NegativePrompt Text   `json:"negative_prompt"`
	GuidanceScale  Number `json:"guidance_scale"`
	OutputFormat   Text   `json:"output_format"`
	OutputQuality  Number `json:"output_quality"`
}
