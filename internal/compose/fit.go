package compose

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
)

// lineHeightRatio is the line pitch as a multiple of the font size
const lineHeightRatio = 1.2

// Layout is text wrapped into a box at one font size
type Layout struct {
	Size       float64
	Lines      []string
	LineHeight float64
	// Overflow is set when even the minimum size does not fit the box height;
	// the block then extends below the box.
	Overflow bool
}

// Height returns the height of the laid out block
func (l Layout) Height() float64 {
	return float64(len(l.Lines)) * l.LineHeight
}

// Fit finds the largest whole pixel size in [minSize, maxSize] at which text,
// greedily word-wrapped to width w, fits within height h. Words wider than w
// are broken between runes, so no line is wider than w unless a single rune
// is. When no size fits, minSize is used and Overflow is set.
func Fit(src FaceSource, text string, w, h int, minSize, maxSize float64) (Layout, error) {
	lo := math.Max(1, math.Ceil(minSize))
	hi := math.Floor(maxSize)
	if hi < lo {
		hi = lo
	}

	var best *Layout
	for lo <= hi {
		mid := math.Floor((lo + hi) / 2)
		layout, fits, err := tryLayout(src, text, w, h, mid)
		if err != nil {
			return Layout{}, err
		}
		if fits {
			best = &layout
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best != nil {
		return *best, nil
	}

	layout, _, err := tryLayout(src, text, w, h, math.Max(1, math.Ceil(minSize)))
	if err != nil {
		return Layout{}, err
	}
	layout.Overflow = true
	return layout, nil
}

func tryLayout(src FaceSource, text string, w, h int, size float64) (Layout, bool, error) {
	face, err := src.Face(size)
	if err != nil {
		return Layout{}, false, err
	}

	lines, tooWide := wrap(face, text, w)
	layout := Layout{
		Size:       size,
		Lines:      lines,
		LineHeight: size * lineHeightRatio,
	}
	return layout, !tooWide && layout.Height() <= float64(h), nil
}

// wrap breaks text into lines no wider than w. tooWide reports a single rune
// wider than w.
func wrap(face font.Face, text string, w int) (lines []string, tooWide bool) {
	width := func(s string) int { return font.MeasureString(face, s).Ceil() }

	var line string
	for _, word := range strings.Fields(text) {
		if line != "" {
			if candidate := line + " " + word; width(candidate) <= w {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = ""
		}
		if width(word) <= w {
			line = word
			continue
		}

		// Break an over-wide word between runes
		chunk := ""
		for _, r := range word {
			next := chunk + string(r)
			if chunk != "" && width(next) > w {
				lines = append(lines, chunk)
				next = string(r)
			}
			if utf8.RuneCountInString(next) == 1 && width(next) > w {
				tooWide = true
			}
			chunk = next
		}
		line = chunk
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines, tooWide
}
