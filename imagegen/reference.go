package imagegen

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ReferenceImage is an input image encoded as a data URL
// ("data:image/png;base64,...").
type ReferenceImage struct {
	DataURL string
}

// NewReferenceImage encodes raw bytes as a data URL. An empty mimeType is
// sniffed from the content.
func NewReferenceImage(data []byte, mimeType string) ReferenceImage {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return ReferenceImage{
		DataURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// ReferenceImageFromFile reads an image file and encodes it as a data URL.
func ReferenceImageFromFile(path string) (ReferenceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ReferenceImage{}, fmt.Errorf("imagegen: failed to read reference image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return ReferenceImage{}, fmt.Errorf("imagegen: %s is not an image (%s)", path, mimeType)
	}
	return NewReferenceImage(data, mimeType), nil
}

// ParseReferenceImage validates a data URL received from a client.
func ParseReferenceImage(dataURL string) (ReferenceImage, error) {
	ref := ReferenceImage{DataURL: strings.TrimSpace(dataURL)}
	if _, _, err := ref.Decode(); err != nil {
		return ReferenceImage{}, err
	}
	return ref, nil
}

// Decode returns the MIME type and raw bytes carried by the data URL.
func (r ReferenceImage) Decode() (string, []byte, error) {
	rest, ok := strings.CutPrefix(r.DataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("imagegen: reference image is not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("imagegen: reference image data URL has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("imagegen: reference image data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("imagegen: invalid base64 in reference image: %w", err)
	}
	return mimeType, data, nil
}

// Reader returns the decoded bytes as a reader.
func (r ReferenceImage) Reader() (*bytes.Reader, error) {
	_, data, err := r.Decode()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// cloneReferences copies refs so the caller's slice is never shared.
func cloneReferences(refs []ReferenceImage) []ReferenceImage {
	if len(refs) == 0 {
		return nil
	}
	out := make([]ReferenceImage, len(refs))
	copy(out, refs)
	return out
}
