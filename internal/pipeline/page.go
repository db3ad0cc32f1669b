// Package pipeline drives a document through rasterization, region
// extraction, translation, compositing and assembly.
package pipeline

import (
	"context"
	"image"

	"pdf-translator/internal/natsort"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/vision"
)

// Page is one rasterized page. Index is its 0-based position in natural order
// of SourceID. Pages are never modified once created.
type Page struct {
	Index    int
	SourceID string
	Image    image.Image
}

// CompositedPage is a page with translations drawn in; same Index as its Page
type CompositedPage = pdf.Page

// SourcePage is a rasterized page before ordering
type SourcePage = pdf.SourcePage

// Rasterizer turns an input document into page images
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int) ([]SourcePage, error)
}

// Compositor draws translated regions into a copy of a page image
type Compositor interface {
	Composite(img image.Image, regions []vision.Region) (*image.RGBA, error)
}

// Assembler writes ordered composited pages into one document
type Assembler interface {
	Assemble(ctx context.Context, pages []CompositedPage, outPath string) (*pdf.Document, error)
}

// Order sorts source pages naturally by id and assigns contiguous indices.
// The input slice is not reordered.
func Order(src []SourcePage) []Page {
	sorted := append([]SourcePage(nil), src...)
	natsort.SortFunc(sorted, func(p SourcePage) string { return p.ID })

	pages := make([]Page, len(sorted))
	for i, s := range sorted {
		pages[i] = Page{Index: i, SourceID: s.ID, Image: s.Image}
	}
	return pages
}
