// Package analysis provides an HTTP client for the cognitive analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/resilience"
)

const (
	analyzePath  = "/v1/analyze"
	maxBodyBytes = 1 << 20
)

// Client calls POST {baseURL}/v1/analyze.
type Client struct {
	baseURL    string
	apiKey     func() string
	httpClient *http.Client
	breaker    *resilience.Breaker
	now        func() time.Time
}

// NewClient creates a client. timeout bounds each call; the caller's context
// may cut it shorter.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  func() string { return apiKey },
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// SetAPIKeySource makes every call read the API key from fn, so a rotated
// key takes effect without a restart.
func (c *Client) SetAPIKeySource(fn func() string) {
	c.apiKey = fn
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Analyze requests a summary for a proposal. Responses with scores outside
// [0, 1] are rejected.
func (c *Client) Analyze(ctx context.Context, req cognitive.Request) (*cognitive.Summary, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, analyzePath, body)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.ProposalID, err)
	}

	var s cognitive.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.ProposalID, err)
	}
	if s.AnalyzedAt.IsZero() {
		s.AnalyzedAt = c.now().UTC()
	}
	return &s, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if key := c.apiKey(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("analysis API error %d: %s", resp.StatusCode, truncate(data, 256))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.ExecuteContext(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
