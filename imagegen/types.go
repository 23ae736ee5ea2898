// Package imagegen implements the image generation client pipeline: it builds
// provider-agnostic requests, normalizes heterogeneous upstream responses,
// backfills under-delivered batches and hands the results to a presentation
// sink one item at a time.
//
// types.go contains the data model shared by every stage.
package imagegen

// Request limits and defaults.
const (
	// SizeAuto asks for the size to be taken from the first reference image.
	SizeAuto = "auto"

	// FallbackSize is used when "auto" cannot be resolved and generation must proceed.
	FallbackSize = "512x512"

	MinPromptLength = 5
	MinCount        = 1
	MaxCount        = 20
)

// Params are the user-supplied generation parameters before validation.
type Params struct {
	Model         string
	Prompt        string
	Count         int
	Size          string // "WxH" or SizeAuto
	GuidanceScale float64
	Steps         int
	Strength      float64
}

// ImageRequestSpec is a validated generation request with a resolved size.
//
// ReferenceImages is a copy owned by the request; callers keep their own slice.
type ImageRequestSpec struct {
	Model           string
	Prompt          string
	Count           int
	Size            string
	GuidanceScale   float64
	Steps           int
	Strength        float64
	ReferenceImages []ReferenceImage
}

// Descriptor is the canonical form of one generated image: either a URL or
// inline base64 data. A descriptor produced from an unrecognised object has
// neither field set and fails delivery.
type Descriptor struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

// Valid reports whether exactly one form is populated.
func (d Descriptor) Valid() bool {
	return (d.URL == "") != (d.B64JSON == "")
}

// IsInline reports whether the descriptor carries the image bytes itself.
func (d Descriptor) IsInline() bool {
	return d.URL == "" && d.B64JSON != ""
}

// Batch is an ordered list of descriptors: primary results first, then
// backfill results in completion order.
type Batch []Descriptor

// Clone returns a copy that shares no memory with b.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	copy(out, b)
	return out
}

// Progress tracks progressive delivery. Attempted counts every item handed to
// the sink; Succeeded counts only those the sink accepted. Both only grow.
type Progress struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}

// Done reports whether every item has been attempted.
func (p Progress) Done() bool {
	return p.Attempted >= p.Total
}

// Failed is the number of attempted items the sink did not accept.
func (p Progress) Failed() int {
	return p.Attempted - p.Succeeded
}

// DeliveryState is the lifecycle of one Deliver call.
type DeliveryState int

const (
	StateIdle DeliveryState = iota
	StateDelivering
	StateComplete
	StateCancelled
)

// String returns the lowercase state name.
func (s DeliveryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDelivering:
		return "delivering"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
