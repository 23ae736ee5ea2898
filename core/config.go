package core

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Default values used when the environment does not override them.
const (
	DefaultImageAPIURL      = "http://localhost:8001/api/images/generations"
	DefaultUpstreamBaseURL  = "https://nano-gpt.com"
	DefaultProvider         = ProviderGeneric
	DefaultModel            = "dall-e-3"
	DefaultSize             = "1024x1024"
	DefaultCount            = 1
	DefaultGuidanceScale    = 7.5
	DefaultSteps            = 30
	DefaultStrength         = 0.8
	DefaultDeliveryMillis   = 500
	DefaultBackfillParallel = 4
	DefaultPort             = 8001
)

// Supported upstream providers.
const (
	// ProviderGeneric posts the raw payload and accepts any known response shape.
	ProviderGeneric = "generic"
	// ProviderOpenAI uses the OpenAI images API through go-openai.
	ProviderOpenAI = "openai"
)

// GenerationDefaults are the parameter values used when a caller leaves a field unset.
type GenerationDefaults struct {
	Model         string
	Size          string
	Count         int
	GuidanceScale float64
	Steps         int
	Strength      float64
}

// Config holds all configuration values
type Config struct {
	// Upstream image service
	ImageAPIURL     string // Endpoint the generator posts to (usually the local proxy)
	ImageAPIKey     string // Bearer token for the endpoint (optional when proxied)
	Provider        string // "generic" or "openai"
	UpstreamBaseURL string // Target of the CORS proxy served by `serve`

	// Generation parameter defaults
	Defaults GenerationDefaults

	// Pipeline tuning
	DeliveryInterval      time.Duration // Pacing between progressive delivery steps
	BackfillInterval      time.Duration // Minimum spacing between backfill requests (0 = unpaced)
	BackfillMaxConcurrent int           // Upper bound on in-flight backfill requests
	AITimeout             time.Duration // HTTP timeout for upstream calls

	// Runtime
	AllowSelfSignedCerts bool
	DownloadsDir         string
	Port                 int
	DevMode              bool
	LogFile              string
}

// LoadConfig loads configuration from environment variables with defaults
// suitable for running against the local proxy. No variable is required.
func LoadConfig() (*Config, error) {
	cfg := LoadConfigUnchecked()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigUnchecked reads the environment like LoadConfig but skips
// Validate, so diagnostics can report every problem instead of the first.
func LoadConfigUnchecked() *Config {
	imageKey := os.Getenv("IMAGE_API_KEY")
	if imageKey == "" {
		imageKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := &Config{
		ImageAPIURL:     GetEnvOrDefault("IMAGE_API_URL", DefaultImageAPIURL),
		ImageAPIKey:     imageKey,
		Provider:        strings.ToLower(GetEnvOrDefault("IMAGE_PROVIDER", DefaultProvider)),
		UpstreamBaseURL: GetEnvOrDefault("UPSTREAM_BASE_URL", DefaultUpstreamBaseURL),

		Defaults: GenerationDefaults{
			Model:         GetEnvOrDefault("IMAGE_MODEL", DefaultModel),
			Size:          GetEnvOrDefault("IMAGE_SIZE", DefaultSize),
			Count:         ParseIntEnv("IMAGE_COUNT", DefaultCount),
			GuidanceScale: ParseFloat64Env("IMAGE_GUIDANCE_SCALE", DefaultGuidanceScale),
			Steps:         ParseIntEnv("IMAGE_STEPS", DefaultSteps),
			Strength:      ParseFloat64Env("IMAGE_STRENGTH", DefaultStrength),
		},

		DeliveryInterval:      ParseMillisEnv("DELIVERY_INTERVAL_MS", DefaultDeliveryMillis),
		BackfillInterval:      ParseMillisEnv("BACKFILL_INTERVAL_MS", 0),
		BackfillMaxConcurrent: ParseIntEnv("BACKFILL_MAX_CONCURRENT", DefaultBackfillParallel),
		// 120s matches the upstream proxy timeout; image models are slow
		AITimeout: ParseDurationEnv("AI_TIMEOUT", 120),

		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),
		DownloadsDir:         GetEnvOrDefault("DOWNLOADS_DIR", "./downloads"),
		Port:                 ParseIntEnv("PORT", DefaultPort),
		DevMode:              ParseBoolEnv("DEV_MODE", false),
		LogFile:              GetEnvOrDefault("LOG_FILE", "imagestream.log"),
	}
	return cfg
}

// Validate checks value ranges and returns the first problem as a *ConfigError.
func (c *Config) Validate() error {
	if err := validateHTTPURL("IMAGE_API_URL", c.ImageAPIURL); err != nil {
		return err
	}
	if err := validateHTTPURL("UPSTREAM_BASE_URL", c.UpstreamBaseURL); err != nil {
		return err
	}

	switch c.Provider {
	case ProviderGeneric:
	case ProviderOpenAI:
		if c.ImageAPIKey == "" {
			return ErrMissingAuth(ProviderOpenAI)
		}
	default:
		return ErrInvalidValue("IMAGE_PROVIDER", c.Provider, "must be \"generic\" or \"openai\"")
	}

	if c.Defaults.Count < 1 || c.Defaults.Count > 20 {
		return ErrInvalidValue("IMAGE_COUNT", fmt.Sprint(c.Defaults.Count), "must be between 1 and 20")
	}
	if c.Defaults.Steps < 1 || c.Defaults.Steps > 150 {
		return ErrInvalidValue("IMAGE_STEPS", fmt.Sprint(c.Defaults.Steps), "must be between 1 and 150")
	}
	if c.Defaults.Strength < 0 || c.Defaults.Strength > 1 {
		return ErrInvalidValue("IMAGE_STRENGTH", fmt.Sprintf("%.2f", c.Defaults.Strength), "must be between 0.0 and 1.0")
	}
	if c.BackfillMaxConcurrent < 1 {
		return ErrInvalidValue("BACKFILL_MAX_CONCURRENT", fmt.Sprint(c.BackfillMaxConcurrent), "must be at least 1")
	}
	if c.AITimeout < time.Second {
		return ErrInvalidValue("AI_TIMEOUT", c.AITimeout.String(), "must be at least 1 second")
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("PORT", fmt.Sprint(c.Port), "must be a valid TCP port")
	}
	return nil
}

func validateHTTPURL(varName, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL(varName, raw, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL(varName, raw, "scheme must be http or https")
	}
	if u.Host == "" {
		return ErrInvalidURL(varName, raw, "missing host")
	}
	return nil
}
