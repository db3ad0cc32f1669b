package vision

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Pixel budget of the Qwen2.5-VL family
const (
	DefaultMinPixels = 512 * 28 * 28
	DefaultMaxPixels = 2048 * 28 * 28
)

// SmartResize returns the dimensions the page is sent to the model at.
// Dimensions whose area lies in [minPixels, maxPixels] are kept; others are
// scaled uniformly so the area lands on the nearer bound.
func SmartResize(height, width, minPixels, maxPixels int) (int, int) {
	pixels := height * width
	if pixels <= 0 || (pixels >= minPixels && pixels <= maxPixels) {
		return height, width
	}

	var scale float64
	if pixels < minPixels {
		scale = math.Sqrt(float64(minPixels) / float64(pixels))
	} else {
		scale = math.Sqrt(float64(maxPixels) / float64(pixels))
	}

	h := int(float64(height) * scale)
	w := int(float64(width) * scale)
	if h < 1 {
		h = 1
	}
	if w < 1 {
		w = 1
	}
	return h, w
}

// resize scales img to w x h. The source is returned as is when the size
// already matches.
func resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
