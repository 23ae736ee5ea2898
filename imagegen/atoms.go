package imagegen

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape describes the orientation of an image.
type Shape string

const (
	ShapeUnknown   Shape = ""
	ShapeSquare    Shape = "square"
	ShapeLandscape Shape = "landscape"
	ShapePortrait  Shape = "portrait"
)

// ClassifyShape maps pixel dimensions to a shape. Aspect ratios within
// [0.9, 1.1] count as square.
//
// Example:
//
//	ClassifyShape(1024, 768) // ShapeLandscape
//	ClassifyShape(500, 520)  // ShapeSquare
func ClassifyShape(width, height int) Shape {
	if width <= 0 || height <= 0 {
		return ShapeUnknown
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1.1:
		return ShapeLandscape
	case ratio < 0.9:
		return ShapePortrait
	default:
		return ShapeSquare
	}
}

// FormatSize renders dimensions as the literal "WxH" string sent upstream.
func FormatSize(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// ParseSize parses a "WxH" string. It returns ok=false for "auto" or malformed input.
func ParseSize(size string) (width, height int, ok bool) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !found {
		return 0, 0, false
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// truncateText shortens text for log previews, counting runes.
func truncateText(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
