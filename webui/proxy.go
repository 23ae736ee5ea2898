package webui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/logging"
)

const (
	upstreamImagesPath = "/v1/images/generations"
	maxProxyBodyBytes  = 64 << 20
	proxyUserAgent     = "imagestream-proxy/1.0"
)

// ImageProxy forwards browser requests to the upstream image API with the
// server-held key and answers CORS preflights, so a page on another origin
// can call the API without seeing the key.
type ImageProxy struct {
	client   *http.Client
	upstream string
	apiKey   string
	logger   *logging.Logger
}

// NewImageProxy creates a proxy targeting <upstreamBaseURL>/v1/images/generations.
func NewImageProxy(client *http.Client, upstreamBaseURL, apiKey string, logger *logging.Logger) *ImageProxy {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ImageProxy{
		client:   client,
		upstream: strings.TrimRight(upstreamBaseURL, "/") + upstreamImagesPath,
		apiKey:   apiKey,
		logger:   logger.Named("proxy"),
	}
}

// NewImageProxyFromConfig builds a proxy from configuration, using AITimeout
// for upstream calls.
func NewImageProxyFromConfig(cfg *core.Config, logger *logging.Logger) *ImageProxy {
	return NewImageProxy(core.GetHTTPClient(cfg, cfg.AITimeout), cfg.UpstreamBaseURL, cfg.ImageAPIKey, logger)
}

// UpstreamURL returns the full upstream endpoint.
func (p *ImageProxy) UpstreamURL() string {
	return p.upstream
}

// ServeHTTP implements http.Handler.
func (p *ImageProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	switch {
	case r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case r.URL.Path != PathProxyImages:
		writeJSONError(w, http.StatusNotFound, "API endpoint not found")
	case r.Method != http.MethodPost:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		p.forward(w, r)
	}
}

func (p *ImageProxy) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request: %v", err))
		return
	}
	if !json.Valid(body) {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON: request body is not valid JSON")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.upstream, bytes.NewReader(body))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", proxyUserAgent)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	p.logger.Debug("Forwarding image request",
		zap.String("upstream", p.upstream),
		zap.Int("bytes", len(body)))

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("Upstream unreachable", zap.Error(err))
		writeJSONError(w, http.StatusServiceUnavailable, fmt.Sprintf("Network error: %v", err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("Failed to read upstream response: %v", err))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := upstreamErrorMessage(respBody)
		p.logger.Warn("Upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		writeJSONError(w, resp.StatusCode, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBody)
}

// upstreamErrorMessage takes the "message" field of a JSON error body, or
// quotes the raw body when it is not JSON.
func upstreamErrorMessage(body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "API request failed: " + string(body)
	}
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	return "API request failed"
}

// ErrorResponse is the JSON error body used by the proxy and the API.
type ErrorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
	h.Set("Access-Control-Max-Age", "86400")
}
