package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeInvalidURL   = "INVALID_URL"
	ErrCodeInvalidValue = "INVALID_VALUE"
	ErrCodeMissingAuth  = "MISSING_AUTH"
	ErrCodePresetFile   = "PRESET_FILE"
)

// ErrInvalidURL returns an error for a malformed endpoint URL
func ErrInvalidURL(varName, url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, url, reason),
		Action:  fmt.Sprintf("Set %s to a full URL (e.g., https://api.example.com/v1/images/generations)", varName),
	}
}

// ErrInvalidValue returns an error for a value outside its allowed range
func ErrInvalidValue(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Fix %s in your environment or .env file", varName),
	}
}

// ErrMissingAuth returns an error for missing authentication credentials
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case ProviderOpenAI:
		action = "Set IMAGE_API_KEY (or OPENAI_API_KEY) in your .env file"
	case "proxy":
		action = "Set IMAGE_API_KEY so the proxy can authenticate upstream"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrPresetFile returns an error for an unreadable or malformed preset file
func ErrPresetFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePresetFile,
		Message: fmt.Sprintf("Cannot load preset %s: %s", path, reason),
		Action:  "Check the file exists and is valid YAML",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
