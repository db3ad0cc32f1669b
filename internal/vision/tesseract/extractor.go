//go:build ocr

// Package tesseract finds text lines with the local Tesseract engine. It is an
// offline alternative to the vision model and requires Tesseract with the
// wanted traineddata installed:
//
//	apt-get install tesseract-ocr tesseract-ocr-chi-sim
//
// Build with -tags ocr to enable it.
package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
	"pdf-translator/internal/vision"
)

// Available reports whether this binary was built with Tesseract support
const Available = true

// Extractor implements vision.Extractor with Tesseract text-line boxes
type Extractor struct {
	languages     []string
	minConfidence float64
}

// New creates an extractor for the given Tesseract languages ("chi_sim" when
// empty). Lines below minConfidence (0-100) are dropped.
func New(minConfidence float64, languages ...string) (*Extractor, error) {
	if len(languages) == 0 {
		languages = []string{"chi_sim"}
	}
	return &Extractor{languages: languages, minConfidence: minConfidence}, nil
}

// Extract implements vision.Extractor. Each call uses its own Tesseract
// client since a client is not safe for concurrent use. Extract returns
// ctx.Err() as soon as ctx is done.
func (e *Extractor) Extract(ctx context.Context, img image.Image) ([]vision.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "failed to encode page image", err)
	}

	// Tesseract cannot be interrupted; on cancellation the call finishes in
	// the background and closes its own client.
	boxes, err := withContext(ctx, func() ([]gosseract.BoundingBox, error) {
		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetLanguage(e.languages...); err != nil {
			return nil, types.NewAppError(types.ErrExtraction, "failed to set OCR language", err)
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			return nil, types.NewAppError(types.ErrExtraction, "failed to set image", err)
		}
		boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
		if err != nil {
			return nil, types.NewAppError(types.ErrExtraction, "OCR failed", err)
		}
		return boxes, nil
	})
	if err != nil {
		return nil, err
	}

	origin := img.Bounds().Min
	raw := make([]vision.RawRegion, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence < e.minConfidence {
			continue
		}
		r := b.Box.Add(origin)
		raw = append(raw, vision.RawRegion{
			BBox: []float64{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)},
			Text: collapseCJKSpaces(b.Word),
		})
	}

	regions := vision.Normalize(raw, img.Bounds(), nil)
	logger.Debug("tesseract lines extracted",
		logger.Int("lines", len(boxes)),
		logger.Int("kept", len(regions)))
	return regions, nil
}

// collapseCJKSpaces removes the spaces Tesseract puts between Han characters
func collapseCJKSpaces(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsSpace(r) && i > 0 && i < len(runes)-1 &&
			unicode.Is(unicode.Han, runes[i-1]) && unicode.Is(unicode.Han, runes[i+1]) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
