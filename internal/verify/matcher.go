// Package verify provides the verification collaborators of the coordination
// core: the biometric matcher boundary and the one-time-code manager used for
// manual credential verification.
package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Matcher is the biometric matching boundary: image in, match-or-none out.
// Implementations must not panic; errors are treated upstream as failed
// attempts, never as crashes.
type Matcher interface {
	Match(ctx context.Context, image []byte) (*models.CaptureResult, error)
}

// DefaultMatcherTimeout bounds a single match call.
const DefaultMatcherTimeout = 10 * time.Second

// MatcherOpts holds configuration options for the HTTP matcher.
type MatcherOpts struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// MatcherOption defines a configuration option for the HTTP matcher.
type MatcherOption func(*MatcherOpts)

// WithMatcherURL sets the face service endpoint.
func WithMatcherURL(url string) MatcherOption {
	return func(o *MatcherOpts) { o.URL = url }
}

// WithMatcherClient overrides the HTTP client, used in tests.
func WithMatcherClient(c *http.Client) MatcherOption {
	return func(o *MatcherOpts) { o.Client = c }
}

// WithMatcherTimeout overrides the per-call timeout.
func WithMatcherTimeout(d time.Duration) MatcherOption {
	return func(o *MatcherOpts) { o.Timeout = d }
}

// HTTPMatcher calls an external face service over JSON/HTTP.
type HTTPMatcher struct {
	url    string
	client *http.Client
}

// matchRequest is the wire format sent to the face service.
type matchRequest struct {
	Image string `json:"image"` // base64-encoded frame
}

// matchResponse is the wire format returned by the face service.
type matchResponse struct {
	Success    bool    `json:"success"`
	Identity   string  `json:"identity,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// NewHTTPMatcher creates a matcher for an external face service endpoint.
func NewHTTPMatcher(opts ...MatcherOption) (*HTTPMatcher, error) {
	cfg := MatcherOpts{Timeout: DefaultMatcherTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("face service URL not set")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPMatcher{url: cfg.URL, client: client}, nil
}

// Match posts the captured frame to the face service and normalizes the result.
func (m *HTTPMatcher) Match(ctx context.Context, image []byte) (*models.CaptureResult, error) {
	body, err := json.Marshal(matchRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode match request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		slog.Error("HTTPMatcher request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrMatcherUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("HTTPMatcher unexpected status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", models.ErrMatcherUnavailable, resp.StatusCode)
	}

	var mr matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("failed to decode match response: %w", err)
	}

	slog.Debug("HTTPMatcher result", "success", mr.Success, "identity_set", mr.Identity != "", "confidence", mr.Confidence)
	return &models.CaptureResult{
		Success:    mr.Success,
		Identity:   mr.Identity,
		Confidence: mr.Confidence,
	}, nil
}

// StaticMatcher always returns a fixed result, used in development and tests.
type StaticMatcher struct {
	Result models.CaptureResult
	Err    error
}

// Match returns the configured result.
func (m *StaticMatcher) Match(ctx context.Context, image []byte) (*models.CaptureResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	res := m.Result
	return &res, nil
}
