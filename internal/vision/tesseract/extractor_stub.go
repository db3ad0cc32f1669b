//go:build !ocr

// Package tesseract finds text lines with the local Tesseract engine.
//
// This is the stub used when the "ocr" build tag is not set. To enable
// Tesseract, rebuild with:
//
//	go build -tags ocr
package tesseract

import (
	"context"
	"errors"
	"image"

	"pdf-translator/internal/types"
	"pdf-translator/internal/vision"
)

// Available reports whether this binary was built with Tesseract support
const Available = false

// ErrOCRNotEnabled is returned when Tesseract support was not compiled in
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Extractor is a stub that always fails
type Extractor struct{}

// New returns ErrOCRNotEnabled
func New(minConfidence float64, languages ...string) (*Extractor, error) {
	return nil, types.NewAppError(types.ErrConfig, "tesseract extractor unavailable", ErrOCRNotEnabled)
}

// Extract returns ErrOCRNotEnabled
func (e *Extractor) Extract(ctx context.Context, img image.Image) ([]vision.Region, error) {
	return nil, types.NewAppError(types.ErrExtraction, "tesseract extractor unavailable", ErrOCRNotEnabled)
}
