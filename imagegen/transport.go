package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"imagestream/core"
)

// maxResponseBytes caps how much of an upstream body is read. Inline base64
// batches can be large.
const maxResponseBytes = 64 << 20

// Transport executes one generation request and returns the raw response body.
// Non-2xx responses are returned as *TransportError.
type Transport interface {
	Post(ctx context.Context, payload Payload) (json.RawMessage, error)
}

// HTTPTransport posts the payload as JSON to a fixed endpoint.
//
// Thread Safety: HTTPTransport is safe for concurrent use.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPTransport creates a transport for endpoint. apiKey may be empty when
// the endpoint is the local proxy.
func NewHTTPTransport(client *http.Client, endpoint, apiKey string) (*HTTPTransport, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("imagegen: transport endpoint cannot be empty")
	}
	if client == nil {
		client = core.GetDefaultHTTPClient(nil)
	}
	return &HTTPTransport{client: client, endpoint: endpoint, apiKey: apiKey}, nil
}

// NewHTTPTransportFromConfig builds a transport for cfg.ImageAPIURL using the
// configured timeout and TLS settings.
func NewHTTPTransportFromConfig(cfg *core.Config) (*HTTPTransport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewHTTPTransport(core.GetHTTPClient(cfg, cfg.AITimeout), cfg.ImageAPIURL, cfg.ImageAPIKey)
}

// Post implements Transport.
func (t *HTTPTransport) Post(ctx context.Context, payload Payload) (json.RawMessage, error) {
	if payload.ResponseFormat == "" {
		payload.ResponseFormat = ResponseFormatURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    errorMessageFromBody(data, resp.StatusCode),
		}
	}
	return json.RawMessage(data), nil
}

// errorMessageFromBody extracts "message", "error.message" or a string
// "error" from a JSON error body.
func errorMessageFromBody(body []byte, status int) string {
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		if m, ok := parsed["message"].(string); ok && m != "" {
			return m
		}
		switch e := parsed["error"].(type) {
		case map[string]any:
			if m, ok := e["message"].(string); ok && m != "" {
				return m
			}
		case string:
			if e != "" {
				return e
			}
		}
	}
	return fmt.Sprintf("HTTP error: %d", status)
}

var _ Transport = (*HTTPTransport)(nil)
