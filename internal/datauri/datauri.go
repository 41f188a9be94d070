// Package datauri encodes and decodes base64 "data:" URIs.
package datauri

import (
	"encoding/base64"
	"errors"
	"strings"
)

// DefaultMediaType is assumed when a payload carries no media type.
const DefaultMediaType = "image/jpeg"

// ErrMalformed is returned when the payload is not valid base64.
var ErrMalformed = errors.New("malformed data uri")

// Encode returns data as "data:<mediaType>;base64,<payload>".
func Encode(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Split separates a base64 data URI into media type and payload. Input that
// is not a data URI is returned unchanged as the payload with
// DefaultMediaType and ok=false.
func Split(s string) (mediaType, payload string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return DefaultMediaType, s, false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return DefaultMediaType, s, false
	}
	mt, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || mt == "" || strings.Contains(mt, ";") || data == "" {
		return DefaultMediaType, s, false
	}
	return mt, data, true
}

// Decode returns the media type and decoded bytes of s. A bare base64
// string is accepted and reported as DefaultMediaType.
func Decode(s string) (string, []byte, error) {
	mediaType, payload, _ := Split(strings.TrimSpace(s))
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, ErrMalformed
		}
	}
	return mediaType, data, nil
}
