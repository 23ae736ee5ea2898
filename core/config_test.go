package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv blanks every variable LoadConfig reads so host settings don't leak in.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IMAGE_API_URL", "IMAGE_API_KEY", "OPENAI_API_KEY", "IMAGE_PROVIDER", "UPSTREAM_BASE_URL",
		"IMAGE_MODEL", "IMAGE_SIZE", "IMAGE_COUNT", "IMAGE_GUIDANCE_SCALE", "IMAGE_STEPS", "IMAGE_STRENGTH",
		"DELIVERY_INTERVAL_MS", "BACKFILL_INTERVAL_MS", "BACKFILL_MAX_CONCURRENT", "AI_TIMEOUT",
		"ALLOW_SELF_SIGNED_CERTS", "DOWNLOADS_DIR", "PORT", "DEV_MODE", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultImageAPIURL, cfg.ImageAPIURL)
	assert.Equal(t, ProviderGeneric, cfg.Provider)
	assert.Equal(t, DefaultModel, cfg.Defaults.Model)
	assert.Equal(t, DefaultCount, cfg.Defaults.Count)
	assert.Equal(t, 500*time.Millisecond, cfg.DeliveryInterval)
	assert.Equal(t, time.Duration(0), cfg.BackfillInterval)
	assert.Equal(t, DefaultBackfillParallel, cfg.BackfillMaxConcurrent)
	assert.Equal(t, 120*time.Second, cfg.AITimeout)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.False(t, cfg.AllowSelfSignedCerts)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("IMAGE_API_URL", "https://images.example.com/v1/images/generations")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("IMAGE_PROVIDER", "OpenAI")
	t.Setenv("IMAGE_COUNT", "4")
	t.Setenv("IMAGE_SIZE", "auto")
	t.Setenv("DELIVERY_INTERVAL_MS", "0")
	t.Setenv("BACKFILL_INTERVAL_MS", "200")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.ImageAPIKey)
	assert.Equal(t, 4, cfg.Defaults.Count)
	assert.Equal(t, "auto", cfg.Defaults.Size)
	assert.Equal(t, time.Duration(0), cfg.DeliveryInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.BackfillInterval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		code string
	}{
		{"bad url scheme", "IMAGE_API_URL", "ftp://example.com", ErrCodeInvalidURL},
		{"url without host", "UPSTREAM_BASE_URL", "https://", ErrCodeInvalidURL},
		{"unknown provider", "IMAGE_PROVIDER", "midjourney", ErrCodeInvalidValue},
		{"openai without key", "IMAGE_PROVIDER", "openai", ErrCodeMissingAuth},
		{"count too large", "IMAGE_COUNT", "21", ErrCodeInvalidValue},
		{"count zero", "IMAGE_COUNT", "0", ErrCodeInvalidValue},
		{"steps zero", "IMAGE_STEPS", "0", ErrCodeInvalidValue},
		{"strength above one", "IMAGE_STRENGTH", "1.5", ErrCodeInvalidValue},
		{"no backfill parallelism", "BACKFILL_MAX_CONCURRENT", "0", ErrCodeInvalidValue},
		{"timeout zero", "AI_TIMEOUT", "0", ErrCodeInvalidValue},
		{"port out of range", "PORT", "70000", ErrCodeInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.val)

			cfg, err := LoadConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Equal(t, tt.code, GetErrorCode(err))
		})
	}
}

func TestLoadConfigUnchecked_KeepsInvalidValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("IMAGE_COUNT", "0")

	cfg := LoadConfigUnchecked()
	require.NotNil(t, cfg)
	assert.Equal(t, 0, cfg.Defaults.Count)
	assert.Equal(t, ErrCodeInvalidValue, GetErrorCode(cfg.Validate()))
}

func TestGetHTTPClient(t *testing.T) {
	client := GetHTTPClient(&Config{AllowSelfSignedCerts: true}, 5*time.Second)
	assert.Equal(t, 5*time.Second, client.Timeout)
	assert.NotNil(t, client.Transport)

	client = GetDefaultHTTPClient(&Config{})
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Nil(t, client.Transport)

	client = GetHTTPClient(nil, time.Second)
	assert.Nil(t, client.Transport)
}
