// Package prompts embeds the default instructions sent to vision models.
package prompts

import (
	_ "embed"
	"strings"
)

var (
	//go:embed structured.txt
	structured string

	//go:embed freetext.txt
	freeText string
)

// Structured is the default instruction for JSON scene analysis.
func Structured() string { return strings.TrimSpace(structured) }

// FreeText is the default instruction for a plain-text generation prompt.
func FreeText() string { return strings.TrimSpace(freeText) }
