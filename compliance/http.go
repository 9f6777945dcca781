package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures an HTTPScorer.
type HTTPConfig struct {
	// Endpoint is the full URL the request is posted to.
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// RetryCount is the number of retries on transport errors and 5xx/429.
	RetryCount int
}

// HTTPScorer posts a Request as JSON to a scoring service and decodes the
// Result from the response body.
type HTTPScorer struct {
	client   *resty.Client
	endpoint string
}

// apiError is the error body a scoring service may return.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHTTPScorer creates a scorer for cfg.
func NewHTTPScorer(cfg HTTPConfig) (*HTTPScorer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("scorer endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryCondition)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPScorer{client: client, endpoint: cfg.Endpoint}, nil
}

// Score implements Scorer.
func (s *HTTPScorer) Score(ctx context.Context, req Request) (*Result, error) {
	var result Result
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiError{}).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("posting to scorer: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
			return nil, fmt.Errorf("scorer returned %d: %s: %s", resp.StatusCode(), e.Code, e.Message)
		}
		return nil, fmt.Errorf("scorer returned %d", resp.StatusCode())
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429
}
