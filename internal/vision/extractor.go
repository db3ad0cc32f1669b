package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultSystemPrompt is sent as the system message of every call
	DefaultSystemPrompt = "You are a helpful assistant."
	// DefaultPrompt asks for line-level regions as JSON
	DefaultPrompt = "Spotting all the sentence in the image with line-level. Avoid word-by-word output. And output in JSON format."
)

// AnalyzeRequest is one vision model call
type AnalyzeRequest struct {
	SystemPrompt string
	Prompt       string
	// ImageURL is a data URL (data:image/png;base64,...)
	ImageURL string
}

// Analyzer sends an image and prompt to a vision language model and returns
// the raw reply text.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (string, error)
}

// CoordinateSpace tells how the model's bbox_2d values are expressed
type CoordinateSpace string

const (
	// SpaceModel means pixels of the resized image the model was given
	SpaceModel CoordinateSpace = "model"
	// SpacePage means pixels of the original page image
	SpacePage CoordinateSpace = "page"
	// SpaceNormalized means a 0..1000 grid over the image
	SpaceNormalized CoordinateSpace = "normalized"
)

// LLMOptions configures an LLMExtractor
type LLMOptions struct {
	Space        CoordinateSpace
	SystemPrompt string
	Prompt       string
	// LanguageHint names the source language in the prompt, e.g. "Chinese"
	LanguageHint string
	MinPixels    int
	MaxPixels    int
}

// LLMExtractor finds text regions by asking a vision language model
type LLMExtractor struct {
	analyzer Analyzer
	opts     LLMOptions
}

// NewLLMExtractor creates an extractor backed by analyzer. Zero options fall
// back to the Qwen2.5-VL defaults.
func NewLLMExtractor(analyzer Analyzer, opts LLMOptions) *LLMExtractor {
	if opts.Space == "" {
		opts.Space = SpaceModel
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.MinPixels == 0 {
		opts.MinPixels = DefaultMinPixels
	}
	if opts.MaxPixels == 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &LLMExtractor{analyzer: analyzer, opts: opts}
}

// Extract implements Extractor
func (e *LLMExtractor) Extract(ctx context.Context, img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, types.NewAppError(types.ErrExtraction, "empty page image", nil)
	}

	inH, inW := SmartResize(bounds.Dy(), bounds.Dx(), e.opts.MinPixels, e.opts.MaxPixels)
	dataURL, err := encodeDataURL(resize(img, inW, inH))
	if err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "failed to encode page image", err)
	}

	prompt := e.opts.Prompt
	if e.opts.LanguageHint != "" {
		prompt += fmt.Sprintf(" The text is written in %s.", e.opts.LanguageHint)
	}

	logger.Debug("requesting text regions",
		logger.Int("width", bounds.Dx()),
		logger.Int("height", bounds.Dy()),
		logger.Int("inputWidth", inW),
		logger.Int("inputHeight", inH))

	start := time.Now()
	reply, err := e.analyzer.Analyze(ctx, AnalyzeRequest{
		SystemPrompt: e.opts.SystemPrompt,
		Prompt:       prompt,
		ImageURL:     dataURL,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "vision model call failed", err)
	}

	raw, err := ParseRegions(reply)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "failed to parse vision model reply", err)
	}

	regions := Normalize(raw, bounds, e.scaler(bounds, inW, inH))
	logger.Debug("text regions extracted",
		logger.Int("reported", len(raw)),
		logger.Int("kept", len(regions)),
		logger.Duration("took", time.Since(start)))
	return regions, nil
}

// Scaler maps a model coordinate pair to page pixels
type Scaler func(x, y float64) (float64, float64)

func (e *LLMExtractor) scaler(bounds image.Rectangle, inW, inH int) Scaler {
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	switch e.opts.Space {
	case SpacePage:
		return func(x, y float64) (float64, float64) { return ox + x, oy + y }
	case SpaceNormalized:
		return func(x, y float64) (float64, float64) { return ox + x*w/1000, oy + y*h/1000 }
	default:
		sx, sy := w/float64(inW), h/float64(inH)
		return func(x, y float64) (float64, float64) { return ox + x*sx, oy + y*sy }
	}
}

// Normalize maps raw regions to page pixels, then clamps and filters them.
// Regions whose box collapses or whose text is blank are dropped; the
// remaining ones keep the reported order. A nil scale keeps coordinates.
func Normalize(raw []RawRegion, bounds image.Rectangle, scale Scaler) []Region {
	if scale == nil {
		scale = func(x, y float64) (float64, float64) { return x, y }
	}

	regions := make([]Region, 0, len(raw))
	for _, r := range raw {
		if len(r.BBox) < 4 {
			continue
		}
		text := strings.TrimSpace(norm.NFKC.String(r.Text))
		if text == "" {
			continue
		}

		x1, y1 := scale(r.BBox[0], r.BBox[1])
		x2, y2 := scale(r.BBox[2], r.BBox[3])
		box, ok := NewBox(x1, y1, x2, y2, bounds)
		if !ok {
			continue
		}
		regions = append(regions, Region{Box: box, SourceText: text})
	}
	return regions
}

func encodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
