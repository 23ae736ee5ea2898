// Package webui serves the imagestream HTTP surface: the generate API, the
// upstream CORS proxy, Prometheus metrics and a WebSocket stream of delivery
// events.
//
// This file contains WebSocket message types and constants.
package webui

import (
	"time"

	"imagestream/imagegen"
)

// Message type constants for WebSocket communication.
const (
	// MessageTypeGenerationStarted is sent once a generation request is accepted.
	MessageTypeGenerationStarted = "generation_started"

	// MessageTypeItem carries one delivered image.
	MessageTypeItem = "item"

	// MessageTypeItemError reports an image that failed to render.
	MessageTypeItemError = "item_error"

	// MessageTypeProgress carries the attempted/succeeded counters.
	MessageTypeProgress = "progress"

	// MessageTypeGenerationComplete is sent after the last item of a run.
	MessageTypeGenerationComplete = "generation_complete"

	// MessageTypeGenerationFailed is sent when a run ends with an error.
	MessageTypeGenerationFailed = "generation_failed"

	// MessageTypeError indicates a server-side error message.
	MessageTypeError = "error"

	// MessageTypeInitial is sent to each client right after it connects.
	MessageTypeInitial = "initial"
)

// WSMessage is the envelope for all WebSocket messages. Data holds the
// type-specific payload.
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewWSMessage creates a message stamped with the current time.
func NewWSMessage(msgType string, data interface{}) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// GenerationStartedData describes an accepted generation.
type GenerationStartedData struct {
	CorrelationID string `json:"correlation_id"`
	Prompt        string `json:"prompt"`
	Count         int    `json:"count"`
	Size          string `json:"size"`
}

// ItemData carries one delivered image.
type ItemData struct {
	CorrelationID string `json:"correlation_id"`
	Position      int    `json:"position"`
	Total         int    `json:"total"`
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
}

// ItemErrorData reports a failed item.
type ItemErrorData struct {
	CorrelationID string `json:"correlation_id"`
	Position      int    `json:"position"`
	Message       string `json:"message"`
}

// ProgressData mirrors imagegen.Progress for one run.
type ProgressData struct {
	CorrelationID string `json:"correlation_id"`
	Attempted     int    `json:"attempted"`
	Succeeded     int    `json:"succeeded"`
	Total         int    `json:"total"`
}

// GenerationCompleteData summarises a finished run.
type GenerationCompleteData struct {
	CorrelationID string  `json:"correlation_id"`
	Requested     int     `json:"requested"`
	Delivered     int     `json:"delivered"`
	Partial       bool    `json:"partial"`
	SizeFallback  bool    `json:"size_fallback"`
	DurationMS    float64 `json:"duration_ms"`
}

// GenerationFailedData reports a run that ended with an error.
type GenerationFailedData struct {
	CorrelationID string `json:"correlation_id"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message"`
}

// ErrorData is the payload of a generic error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InitialData is sent to a client when it connects. Replayed is the number
// of recent messages that follow it.
type InitialData struct {
	Version     string `json:"version"`
	ClientCount int    `json:"client_count"`
	Replayed    int    `json:"replayed"`
}

// NewItemMessage builds an item message from a delivered descriptor.
func NewItemMessage(id string, d imagegen.Descriptor, position, total int) WSMessage {
	return NewWSMessage(MessageTypeItem, ItemData{
		CorrelationID: id,
		Position:      position,
		Total:         total,
		URL:           d.URL,
		B64JSON:       d.B64JSON,
	})
}

// NewProgressMessage builds a progress message.
func NewProgressMessage(id string, p imagegen.Progress) WSMessage {
	return NewWSMessage(MessageTypeProgress, ProgressData{
		CorrelationID: id,
		Attempted:     p.Attempted,
		Succeeded:     p.Succeeded,
		Total:         p.Total,
	})
}

// NewCompleteMessage builds a generation_complete message from a result.
func NewCompleteMessage(r *imagegen.Result) WSMessage {
	return NewWSMessage(MessageTypeGenerationComplete, GenerationCompleteData{
		CorrelationID: r.CorrelationID,
		Requested:     r.Requested,
		Delivered:     r.Progress.Succeeded,
		Partial:       r.Partial,
		SizeFallback:  r.SizeFallback,
		DurationMS:    float64(r.Duration.Microseconds()) / 1000,
	})
}

// NewErrorMessage builds a generic error message.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}
