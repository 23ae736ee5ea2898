package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSensitiveData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"no secrets", "model=dall-e-3 size=1024x1024", "model=dall-e-3 size=1024x1024"},
		{"openai key", "key sk-abcdefghijklmnopqrstuvwx", "key " + RedactedPlaceholder},
		{"bearer header", "Bearer abcdefghijklmnopqrst", RedactedPlaceholder},
		{"api_key assignment", "api_key=abcd1234efgh", RedactedPlaceholder},
		{"token assignment", "token: abcdefgh1234", RedactedPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactSensitiveData(tt.input))
		})
	}
}

func TestElideInlineImages(t *testing.T) {
	long := strings.Repeat("QUJD", 40)

	assert.Equal(t, "data:image/jpeg;base64,[160 chars]", ElideInlineImages("data:image/jpeg;base64,"+long))
	assert.Equal(t, "data:image/png;base64,QUJD", ElideInlineImages("data:image/png;base64,QUJD"))
	assert.Equal(t, "https://x/a.png", ElideInlineImages("https://x/a.png"))
}

func TestIsSensitiveField(t *testing.T) {
	for _, name := range []string{"IMAGE_API_KEY", "openai_api_key", "Authorization", "x-api-key", "access_token"} {
		assert.True(t, IsSensitiveField(name), name)
	}
	for _, name := range []string{"model", "prompt", "url", "correlation_id"} {
		assert.False(t, IsSensitiveField(name), name)
	}
}
