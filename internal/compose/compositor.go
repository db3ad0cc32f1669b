// Package compose paints translated text over the original text regions of a
// page image.
package compose

import (
	"image"
	"image/color"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
	"pdf-translator/internal/vision"
)

// DefaultMinFontSize is the smallest text size in pixels (about 2.4pt at 300 dpi)
const DefaultMinFontSize = 10

// Options configures a Compositor
type Options struct {
	// FontPath selects a TTF/OTF/TTC file; empty uses Go Regular
	FontPath string
	// MinFontSize in pixels; zero uses DefaultMinFontSize
	MinFontSize float64
	// MaxFontSize in pixels; zero means the box height
	MaxFontSize float64
}

// Compositor draws translations into page images. It is safe for concurrent
// use.
type Compositor struct {
	font    *Font
	minSize float64
	maxSize float64
}

// New creates a Compositor
func New(opts Options) (*Compositor, error) {
	f, err := LoadFont(opts.FontPath)
	if err != nil {
		return nil, err
	}
	if opts.MinFontSize <= 0 {
		opts.MinFontSize = DefaultMinFontSize
	}
	return &Compositor{font: f, minSize: opts.MinFontSize, maxSize: opts.MaxFontSize}, nil
}

// Composite returns a new image: img with every translated region's box
// filled with its surrounding background colour and the translation drawn
// inside. Regions without a translation are left untouched. img is never
// modified.
func (c *Compositor) Composite(img image.Image, regions []vision.Region) (*image.RGBA, error) {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	faces := newFaceCache(c.font)
	defer faces.Close()

	for i, region := range regions {
		if region.TranslatedText == nil {
			continue
		}
		rect := region.Box.Rect().Intersect(bounds)
		if rect.Empty() {
			continue
		}

		bg := borderColor(img, rect)
		draw.Draw(dst, rect, image.NewUniform(bg), image.Point{}, draw.Src)

		maxSize := c.maxSize
		if maxSize <= 0 {
			maxSize = float64(rect.Dy())
		}
		layout, err := Fit(faces, *region.TranslatedText, rect.Dx(), rect.Dy(), c.minSize, maxSize)
		if err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "failed to lay out translation", err)
		}
		if layout.Overflow {
			logger.Debug("translation overflows its box",
				logger.Int("region", i),
				logger.Float64("size", layout.Size),
				logger.Int("lines", len(layout.Lines)))
		}

		face, err := faces.Face(layout.Size)
		if err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "failed to create font face", err)
		}
		drawLayout(dst, rect, layout, face, contrastColor(bg))
	}
	return dst, nil
}

// drawLayout draws lines left aligned, vertically centred when they fit.
// Glyphs are clipped to the box columns; only vertical overflow is drawn.
func drawLayout(dst *image.RGBA, rect image.Rectangle, layout Layout, face font.Face, fg color.Color) {
	bounds := dst.Bounds()
	clip := image.Rect(rect.Min.X, bounds.Min.Y, rect.Max.X, bounds.Max.Y)
	canvas, ok := dst.SubImage(clip).(*image.RGBA)
	if !ok || canvas.Bounds().Empty() {
		return
	}

	top := float64(rect.Min.Y)
	if extra := float64(rect.Dy()) - layout.Height(); extra > 0 {
		top += extra / 2
	}

	ascent := face.Metrics().Ascent
	// Centre the glyph ascent+descent inside each line pitch
	lead := fixed.Int26_6((layout.LineHeight - layout.Size) / 2 * 64)

	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(fg), Face: face}
	for i, line := range layout.Lines {
		y := fixed.Int26_6((top+float64(i)*layout.LineHeight)*64) + lead + ascent
		d.Dot = fixed.Point26_6{X: fixed.I(rect.Min.X), Y: y}
		d.DrawString(line)
	}
}

// borderColor returns the per-channel median of the one pixel ring around
// rect, falling back to rect's own edge when the ring lies outside the image.
func borderColor(img image.Image, rect image.Rectangle) color.RGBA {
	bounds := img.Bounds()
	ring := rect.Inset(-1)

	var rs, gs, bs []uint8
	sample := func(x, y int) {
		if !(image.Point{X: x, Y: y}).In(bounds) {
			return
		}
		c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
		rs, gs, bs = append(rs, c.R), append(gs, c.G), append(bs, c.B)
	}
	walk := func(r image.Rectangle) {
		for x := r.Min.X; x < r.Max.X; x++ {
			sample(x, r.Min.Y)
			if r.Dy() > 1 {
				sample(x, r.Max.Y-1)
			}
		}
		for y := r.Min.Y + 1; y < r.Max.Y-1; y++ {
			sample(r.Min.X, y)
			if r.Dx() > 1 {
				sample(r.Max.X-1, y)
			}
		}
	}

	walk(ring)
	if len(rs) == 0 {
		walk(rect)
	}
	if len(rs) == 0 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.RGBA{R: median(rs), G: median(gs), B: median(bs), A: 255}
}

func median(v []uint8) uint8 {
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	return v[len(v)/2]
}

// contrastColor picks black or white text for a background
func contrastColor(bg color.RGBA) color.Color {
	luminance := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luminance >= 128 {
		return color.Black
	}
	return color.White
}
