// Package vision locates line-level text regions on page images.
package vision

import (
	"context"
	"image"
	"math"
)

// Box is an axis-aligned rectangle in page pixel coordinates.
// XMin < XMax and YMin < YMax always hold for boxes built by NewBox.
type Box struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// NewBox normalises two corners into a Box clamped to bounds. Inverted
// corners are swapped. It reports false when the clamped box is empty.
func NewBox(x1, y1, x2, y2 float64, bounds image.Rectangle) (Box, bool) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	minX, maxX := float64(bounds.Min.X), float64(bounds.Max.X)
	minY, maxY := float64(bounds.Min.Y), float64(bounds.Max.Y)
	x1, x2 = math.Max(x1, minX), math.Min(x2, maxX)
	y1, y2 = math.Max(y1, minY), math.Min(y2, maxY)
	if x1 >= x2 || y1 >= y2 {
		return Box{}, false
	}

	return Box{
		XMin: int(math.Floor(x1)),
		YMin: int(math.Floor(y1)),
		XMax: int(math.Ceil(x2)),
		YMax: int(math.Ceil(y2)),
	}, true
}

// Width returns the box width in pixels
func (b Box) Width() int { return b.XMax - b.XMin }

// Height returns the box height in pixels
func (b Box) Height() int { return b.YMax - b.YMin }

// Rect converts the box to an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Region is one detected line of text. TranslatedText stays nil until a
// translation succeeds.
type Region struct {
	Box            Box     `json:"box"`
	SourceText     string  `json:"source_text"`
	TranslatedText *string `json:"translated_text,omitempty"`
}

// Translated reports whether the region carries a translation
func (r Region) Translated() bool {
	return r.TranslatedText != nil
}

// Extractor finds text regions on a page image. Regions come back in the
// order the backend reported them.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) ([]Region, error)
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(ctx context.Context, img image.Image) ([]Region, error)

// Extract calls f(ctx, img)
func (f ExtractorFunc) Extract(ctx context.Context, img image.Image) ([]Region, error) {
	return f(ctx, img)
}
