package imagegen

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Payload is the JSON body sent upstream. Field order is part of the wire
// contract. The n/num_images/numImages aliases always carry the same value
// because the upstream naming convention is not known in advance.
type Payload struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	N                 int      `json:"n"`
	Size              string   `json:"size"`
	ResponseFormat    string   `json:"response_format"`
	GuidanceScale     float64  `json:"guidance_scale"`
	NumInferenceSteps int      `json:"num_inference_steps"`
	Strength          float64  `json:"strength"`
	NumImages         int      `json:"num_images"`
	NumImagesCamel    int      `json:"numImages"`
	ImageDataURL      string   `json:"imageDataUrl,omitempty"`
	ImageDataURLs     []string `json:"imageDataUrls,omitempty"`
}

// ResponseFormatURL is the only response_format the pipeline requests.
const ResponseFormatURL = "url"

// SizeResolution is the outcome of resolving the requested size.
type SizeResolution struct {
	Size     string
	Pending  bool  // "auto" with no reference image to measure yet
	Fallback bool  // FallbackSize was substituted
	Err      error // probe failure, if any

	Width       int
	Height      int
	AspectRatio float64
	Shape       Shape
}

// Resolved reports whether Size can be sent upstream as-is.
func (r SizeResolution) Resolved() bool {
	return r.Size != "" && !r.Pending && (r.Err == nil || r.Fallback)
}

// Force returns a resolution usable for a request, substituting FallbackSize
// when the size is pending or could not be detected.
func (r SizeResolution) Force() SizeResolution {
	if r.Resolved() {
		return r
	}
	return SizeResolution{
		Size:     FallbackSize,
		Fallback: true,
		Err:      r.Err,
		Width:    512,
		Height:   512,
		Shape:    ShapeSquare,

		AspectRatio: 1,
	}
}

// Describe returns a short human-readable summary, e.g. "1024x768 (landscape)".
func (r SizeResolution) Describe() string {
	switch {
	case r.Pending:
		return "auto (waiting for reference image)"
	case r.Err != nil && !r.Fallback:
		return "auto (detection failed)"
	case r.Shape != ShapeUnknown:
		return fmt.Sprintf("%s (%s)", r.Size, r.Shape)
	default:
		return r.Size
	}
}

// ResolveSize turns the selected size into the literal size to request.
// Any value other than SizeAuto is returned unchanged. For SizeAuto the first
// reference image is measured; with no reference the result is Pending.
func ResolveSize(ctx context.Context, selected string, refs []ReferenceImage, probe Probe) SizeResolution {
	selected = strings.TrimSpace(selected)
	if !strings.EqualFold(selected, SizeAuto) {
		res := SizeResolution{Size: selected}
		if w, h, ok := ParseSize(selected); ok {
			res.Width, res.Height = w, h
			res.AspectRatio = float64(w) / float64(h)
			res.Shape = ClassifyShape(w, h)
		}
		return res
	}

	if len(refs) == 0 {
		return SizeResolution{Pending: true}
	}
	if probe == nil {
		probe = DecodeProbe{}
	}

	dims, err := probe.Dimensions(ctx, refs[0])
	if err != nil {
		return SizeResolution{Err: err}
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return SizeResolution{Err: fmt.Errorf("imagegen: reference image reports %dx%d", dims.Width, dims.Height)}
	}

	return SizeResolution{
		Size:        FormatSize(dims.Width, dims.Height),
		Width:       dims.Width,
		Height:      dims.Height,
		AspectRatio: float64(dims.Width) / float64(dims.Height),
		Shape:       ClassifyShape(dims.Width, dims.Height),
	}
}

// Validate checks prompt and count. The prompt is trimmed before its length
// is measured in characters.
func Validate(p Params) error {
	prompt := strings.TrimSpace(p.Prompt)
	if prompt == "" {
		return &ValidationError{Code: CodeEmptyPrompt, Reason: "prompt is required"}
	}
	if utf8.RuneCountInString(prompt) < MinPromptLength {
		return &ValidationError{
			Code:   CodePromptTooShort,
			Reason: fmt.Sprintf("prompt must be at least %d characters", MinPromptLength),
		}
	}
	if p.Count < MinCount || p.Count > MaxCount {
		return &ValidationError{
			Code:   CodeInvalidCount,
			Reason: fmt.Sprintf("count must be between %d and %d, got %d", MinCount, MaxCount, p.Count),
		}
	}
	return nil
}

// Build validates params and assembles a request for the given resolved size.
// refs are copied; the caller keeps ownership of its slice.
func Build(p Params, refs []ReferenceImage, resolvedSize string) (ImageRequestSpec, error) {
	if err := Validate(p); err != nil {
		return ImageRequestSpec{}, err
	}
	resolvedSize = strings.TrimSpace(resolvedSize)
	if resolvedSize == "" || strings.EqualFold(resolvedSize, SizeAuto) {
		return ImageRequestSpec{}, &ValidationError{
			Code:   CodeSizeUnresolved,
			Reason: "size must be resolved before building a request",
		}
	}

	return ImageRequestSpec{
		Model:           p.Model,
		Prompt:          strings.TrimSpace(p.Prompt),
		Count:           p.Count,
		Size:            resolvedSize,
		GuidanceScale:   p.GuidanceScale,
		Steps:           p.Steps,
		Strength:        p.Strength,
		ReferenceImages: cloneReferences(refs),
	}, nil
}

// Payload renders the wire payload. One reference image is sent as
// imageDataUrl, several as imageDataUrls, none as neither.
func (s ImageRequestSpec) Payload() Payload {
	p := Payload{
		Model:             s.Model,
		Prompt:            s.Prompt,
		N:                 s.Count,
		Size:              s.Size,
		ResponseFormat:    ResponseFormatURL,
		GuidanceScale:     s.GuidanceScale,
		NumInferenceSteps: s.Steps,
		Strength:          s.Strength,
		NumImages:         s.Count,
		NumImagesCamel:    s.Count,
	}

	switch len(s.ReferenceImages) {
	case 0:
	case 1:
		p.ImageDataURL = s.ReferenceImages[0].DataURL
	default:
		p.ImageDataURLs = make([]string, len(s.ReferenceImages))
		for i, ref := range s.ReferenceImages {
			p.ImageDataURLs[i] = ref.DataURL
		}
	}
	return p
}

// Single returns a copy of the request asking for exactly one image.
func (s ImageRequestSpec) Single() ImageRequestSpec {
	out := s
	out.Count = 1
	out.ReferenceImages = cloneReferences(s.ReferenceImages)
	return out
}
