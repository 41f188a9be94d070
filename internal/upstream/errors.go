// Package upstream holds the error taxonomy shared by every client that talks
// to a third-party provider.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// MaxErrorBody bounds how much of an upstream error body is relayed.
const MaxErrorBody = 64 << 10

// Sentinel errors for transport failures.
var (
	ErrUnreachable = errors.New("upstream unreachable")
	ErrTimeout     = errors.New("upstream timeout")
	ErrCanceled    = errors.New("request canceled")
)

// StatusError is a non-success HTTP answer from a provider. Message holds the
// provider's own explanation and is relayed to clients verbatim.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// CredentialError reports a provider credential missing from configuration.
type CredentialError struct {
	Name string
}

func (e *CredentialError) Error() string {
	return e.Name + " not set"
}

// ReadStatusError builds a StatusError from resp, using the body text when
// present and the status text otherwise. The body is read up to MaxErrorBody.
func ReadStatusError(provider string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
}

// Classify maps a transport-level error to ErrTimeout, ErrCanceled or
// ErrUnreachable, keeping the original message. A canceled context still
// matches context.Canceled.
func Classify(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", ErrCanceled, provider, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrUnreachable, provider, err)
}

// IsTransport reports whether err came from Classify.
func IsTransport(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrCanceled)
}
