package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"imagestream/core"
	"imagestream/logging"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenAIBaseURL is used when no endpoint is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAITransport sends requests through the OpenAI images API for strict
// OpenAI-compatible endpoints. The typed response is re-encoded as
// {"data":[...]} so it goes through the same normalizer as any other transport.
//
// The images API has no reference image field; references are dropped with a
// warning.
type OpenAITransport struct {
	client *openai.Client
	logger *logging.Logger
}

// OpenAITransportConfig holds the settings for NewOpenAITransport.
type OpenAITransportConfig struct {
	APIKey  string
	BaseURL string // default: DefaultOpenAIBaseURL
}

// NewOpenAITransport creates a transport using go-openai. coreCfg supplies the
// HTTP client settings and may be nil.
func NewOpenAITransport(cfg OpenAITransportConfig, coreCfg *core.Config, logger *logging.Logger) (*OpenAITransport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("imagegen: OpenAI API key is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	if clientConfig.BaseURL == "" {
		clientConfig.BaseURL = DefaultOpenAIBaseURL
	}
	if coreCfg != nil {
		clientConfig.HTTPClient = core.GetHTTPClient(coreCfg, coreCfg.AITimeout)
	}

	return &OpenAITransport{
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.Named("openai"),
	}, nil
}

// openAIImage mirrors one entry of the images API response.
type openAIImage struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Post implements Transport.
func (t *OpenAITransport) Post(ctx context.Context, payload Payload) (json.RawMessage, error) {
	if dropped := countReferences(payload); dropped > 0 {
		t.logger.Warn("OpenAI images endpoint does not accept reference images; ignoring them",
			zap.Int("dropped", dropped))
	}

	req := openai.ImageRequest{
		Prompt:         payload.Prompt,
		Model:          payload.Model,
		N:              payload.N,
		Size:           payload.Size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	}
	// Style is only understood by dall-e-3
	if payload.Model == openai.CreateImageModelDallE3 {
		req.Style = openai.CreateImageStyleVivid
	}

	resp, err := t.client.CreateImage(ctx, req)
	if err != nil {
		return nil, toTransportError(err)
	}

	out := struct {
		Created int64         `json:"created"`
		Data    []openAIImage `json:"data"`
	}{Created: resp.Created, Data: make([]openAIImage, 0, len(resp.Data))}
	for _, d := range resp.Data {
		out.Data = append(out.Data, openAIImage{URL: d.URL, B64JSON: d.B64JSON, RevisedPrompt: d.RevisedPrompt})
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to encode OpenAI response: %w", err)
	}
	return raw, nil
}

func countReferences(p Payload) int {
	if p.ImageDataURL != "" {
		return 1
	}
	return len(p.ImageDataURLs)
}

// toTransportError maps go-openai errors onto *TransportError.
func toTransportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return &TransportError{Message: err.Error(), Err: err}
}

var _ Transport = (*OpenAITransport)(nil)
