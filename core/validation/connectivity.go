package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"imagestream/core"
)

// ConnectivityResult represents the result of a connectivity check.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker verifies that an endpoint answers HTTP requests.
type ConnectivityChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewConnectivityChecker creates a checker using the configured TLS
// settings and a 10 second timeout.
func NewConnectivityChecker(cfg *core.Config) *ConnectivityChecker {
	timeout := 10 * time.Second
	return &ConnectivityChecker{
		client:  core.GetHTTPClient(cfg, timeout),
		timeout: timeout,
	}
}

// WithTimeout sets the timeout for connectivity checks.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	c.client.Timeout = timeout
	return c
}

// Check sends a HEAD request to rawURL. Any HTTP response, including 4xx and
// 5xx, counts as reachable; only transport failures do not.
func (c *ConnectivityChecker) Check(ctx context.Context, varName, rawURL string) ConnectivityResult {
	if u, err := url.Parse(rawURL); err != nil || u.Host == "" {
		reason := "missing host"
		if err != nil {
			reason = err.Error()
		}
		return ConnectivityResult{
			Message: "Invalid URL format",
			Error:   core.ErrInvalidURL(varName, rawURL, reason),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ConnectivityResult{
			Message: "Failed to create request",
			Error:   fmt.Errorf("validation: %s: %w", varName, err),
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := "Connection failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "Connection timed out"
		}
		return ConnectivityResult{
			Message: msg,
			Latency: latency,
			Error:   fmt.Errorf("validation: %s unreachable: %w", rawURL, err),
		}
	}
	defer resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("reachable (status: %d)", resp.StatusCode),
		Latency:    latency,
	}
}
