package imagegen

import (
	"errors"
	"fmt"
)

// Validation error codes.
const (
	CodeEmptyPrompt    = "empty_prompt"
	CodePromptTooShort = "prompt_too_short"
	CodeInvalidCount   = "invalid_count"
	CodeSizeUnresolved = "size_unresolved"
)

// ErrNoImages is returned when a successful response contained no recognisable images.
var ErrNoImages = errors.New("imagegen: no images found in response")

// ValidationError is a client-side precondition failure. It is always
// returned before any network call.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("imagegen: validation failed (%s): %s", e.Code, e.Reason)
}

// IsValidationError reports whether err is a *ValidationError, optionally with
// one of the given codes.
func IsValidationError(err error, codes ...string) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if ve.Code == c {
			return true
		}
	}
	return false
}

// TransportError is a non-success response from the upstream service.
// StatusCode is zero when the request never produced a response.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("imagegen: transport failed: %s", e.Message)
	}
	return fmt.Sprintf("imagegen: upstream returned %d: %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ItemError records a delivery failure for one batch position.
type ItemError struct {
	Position int    `json:"position"`
	Message  string `json:"message"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("imagegen: item %d: %s", e.Position, e.Message)
}
