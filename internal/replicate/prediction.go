package replicate

import (
	"encoding/json"
	"strings"
)

// Prediction statuses reported by Replicate.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Prediction is the subset of a Replicate prediction this service relays.
// Output, Error and Logs vary in shape between models, so they are kept raw.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
	Logs   json.RawMessage `json:"logs,omitempty"`
}

// ImageURL returns the output image reference: the output itself when it is
// a string, the first element when it is a list, "" otherwise.
func (p *Prediction) ImageURL() string {
	var out any
	if len(p.Output) == 0 || json.Unmarshal(p.Output, &out) != nil {
		return ""
	}
	switch v := out.(type) {
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		if s, ok := v[0].(string); ok {
			return s
		}
	}
	return ""
}

// ErrorText returns the prediction's error field as text.
func (p *Prediction) ErrorText() string {
	return rawText(p.Error)
}

// LogText returns the prediction logs, joining line lists with "\n".
func (p *Prediction) LogText() string {
	var lines []string
	if err := json.Unmarshal(p.Logs, &lines); err == nil {
		return strings.Join(lines, "\n")
	}
	return rawText(p.Logs)
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
