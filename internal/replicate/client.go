// Package replicate is a minimal client for the Replicate predictions API.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/pixelrelay/internal/upstream"
)

// ProviderName identifies Replicate in errors and metrics.
const ProviderName = "replicate"

// DefaultBaseURL is the public Replicate API root.
const DefaultBaseURL = "https://api.replicate.com/v1"

// Client is the interface for creating and reading predictions.
type Client interface {
	CreatePrediction(ctx context.Context, req CreateRequest) (*Prediction, error)
	GetPrediction(ctx context.Context, id string) (*Prediction, error)
	HasCredentials() bool
}

// CreateRequest is the body of POST /predictions.
type CreateRequest struct {
	Version string `json:"version"`
	Input   any    `json:"input"`
}

// HTTPClient implements Client over Replicate's HTTP API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a Replicate client. A nil httpClient gets a 30s
// timeout default.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		client:  httpClient,
	}
}

func (c *HTTPClient) Name() string { return ProviderName }

// HasCredentials reports whether an API token is configured.
func (c *HTTPClient) HasCredentials() bool {
	return c.token != ""
}

// CreatePrediction submits a new prediction. Replicate answers right away,
// usually with status "starting" and an id to poll.
func (c *HTTPClient) CreatePrediction(ctx context.Context, req CreateRequest) (*Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	return c.do(httpReq)
}

// GetPrediction reads the current state of a prediction.
func (c *HTTPClient) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	u := fmt.Sprintf("%s/predictions/%s", c.baseURL, url.PathEscape(id))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	return c.do(httpReq)
}

func (c *HTTPClient) do(httpReq *http.Request) (*Prediction, error) {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, upstream.Classify(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstream.ReadStatusError(ProviderName, resp)
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding prediction: %w", err)
	}
	return &p, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
