// Package jsonextract recovers a JSON object from free-form model output.
//
// Model responses frequently wrap JSON in markdown code fences or surround it
// with prose. Parse strips an optional fence, falls back to the first "{" ..
// last "}" span and parses that strictly. The span search is greedy: text
// holding several independent objects yields one candidate covering all of
// them, which then fails to parse.
package jsonextract

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// PreviewLimit bounds the raw and cleaned previews carried by ParseError.
const PreviewLimit = 800

const fence = "```"

// ParseError describes why no JSON object could be recovered.
type ParseError struct {
	RawPreview     string
	RawLength      int
	CleanedPreview string
	Message        string
	// Position is the byte offset reported by the JSON parser, if any.
	Position *int64
}

func (e *ParseError) Error() string {
	return "invalid JSON in model output: " + e.Message
}

// Debug returns the diagnostic payload relayed to API clients.
func (e *ParseError) Debug() map[string]any {
	d := map[string]any{
		"raw_preview":     e.RawPreview,
		"raw_length":      e.RawLength,
		"cleaned_preview": e.CleanedPreview,
		"parse_error":     e.Message,
	}
	if e.Position != nil {
		d["parse_position"] = *e.Position
	}
	return d
}

// StripFence removes a leading code fence (optionally tagged "json") and a
// trailing code fence, trimming surrounding whitespace.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		s = s[len(fence):]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimLeft(s, " \t\r\n")
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, fence) {
		s = strings.TrimSpace(s[:len(s)-len(fence)])
	}
	return s
}

// ObjectSpan returns the text from the first "{" through the last "}".
func ObjectSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// Parse extracts the first JSON object from raw. A failure is always a
// *ParseError.
func Parse(raw string) (map[string]any, error) {
	cleaned := StripFence(raw)
	if cleaned == "" {
		return nil, newParseError(raw, cleaned, errors.New("empty input"))
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj != nil {
		return obj, nil
	}

	candidate := cleaned
	if span, ok := ObjectSpan(cleaned); ok {
		candidate = span
	}

	obj = nil
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, newParseError(raw, candidate, err)
	}
	if obj == nil {
		return nil, newParseError(raw, candidate, errors.New("top-level value is null"))
	}
	return obj, nil
}

func newParseError(raw, candidate string, err error) *ParseError {
	pe := &ParseError{
		RawPreview:     truncateRunes(raw, PreviewLimit),
		RawLength:      utf8.RuneCountInString(raw),
		CleanedPreview: truncateRunes(candidate, PreviewLimit),
		Message:        err.Error(),
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		off := syntaxErr.Offset
		pe.Position = &off
	case errors.As(err, &typeErr):
		off := typeErr.Offset
		pe.Position = &off
	}
	return pe
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
