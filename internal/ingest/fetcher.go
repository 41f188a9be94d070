// Package ingest fetches remote images from allow-listed hosts and re-encodes
// them as data URIs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/pixelrelay/internal/config"
	"github.com/kiranshivaraju/pixelrelay/internal/datauri"
	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
)

// ProviderName labels image fetches in errors and metrics.
const ProviderName = "fetch"

const maxRedirects = 10

var (
	ErrMissingURL      = errors.New("url is required")
	ErrInvalidURL      = errors.New("invalid url")
	ErrHostNotAllowed  = errors.New("host not allowed")
	ErrTooLarge        = errors.New("image exceeds size limit")
	errTooManyRedirect = errors.New("stopped after 10 redirects")
)

// Fetcher downloads images from a fixed set of hosts.
type Fetcher struct {
	allowed   []string
	userAgent string
	maxBytes  int64
	client    *http.Client
}

// NewFetcher creates a Fetcher. The given client is copied; its redirect policy
// is replaced so every hop is checked against the allow-list.
func NewFetcher(cfg config.FetchConfig, httpClient *http.Client) *Fetcher {
	c := &http.Client{Timeout: 20 * time.Second}
	if httpClient != nil {
		cp := *httpClient
		c = &cp
	}
	f := &Fetcher{
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		client:    c,
	}
	for _, h := range cfg.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			f.allowed = append(f.allowed, h)
		}
	}
	if f.userAgent == "" {
		f.userAgent = config.DefaultUserAgent
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 20 << 20
	}
	c.CheckRedirect = f.checkRedirect
	return f
}

// HostAllowed reports whether host equals an allowed host or is a subdomain of one.
// Comparison is case-insensitive. A lookalike such as "evilselstorage.ru" does not match.
func (f *Fetcher) HostAllowed(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, h := range f.allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Validate parses rawURL and checks its host without any network access.
func (f *Fetcher) Validate(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, ErrInvalidURL
	}
	if !f.HostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

// Fetch downloads rawURL and returns it as a base64 data URI typed with the
// upstream Content-Type, or image/jpeg when none is sent.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := f.Validate(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return "", err
		}
		return "", upstream.Classify(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, upstream.MaxErrorBody))
		return "", &upstream.StatusError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Upstream: %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", upstream.Classify(ProviderName, err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}

	return datauri.Encode(resp.Header.Get("Content-Type"), data), nil
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errTooManyRedirect
	}
	if !f.HostAllowed(req.URL.Hostname()) {
		return fmt.Errorf("%w: redirect to %s", ErrHostNotAllowed, req.URL.Hostname())
	}
	return nil
}
