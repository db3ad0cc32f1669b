// Package pdf turns documents into page images and page images back into a
// PDF.
package pdf

import (
	"fmt"
	"image"

	"pdf-translator/internal/types"
)

// SourcePage is one rasterized page before ordering. ID is the stable source
// identifier (file name) the natural sort key is computed from.
type SourcePage struct {
	ID    string
	Image image.Image
}

// Page is a page ready for assembly. Index is 0-based and contiguous.
type Page struct {
	Index    int
	SourceID string
	Image    image.Image
}

// Document describes an assembled output file
type Document struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
}

// CheckOrder verifies that pages carry indices 0..n-1 in ascending order,
// each exactly once. It does not sort.
func CheckOrder(pages []Page) error {
	if len(pages) == 0 {
		return types.NewAppError(types.ErrOrderingInvariant, "no pages to assemble", nil)
	}
	for i, p := range pages {
		if p.Index != i {
			return types.NewAppErrorWithDetails(types.ErrOrderingInvariant, "page order violated",
				fmt.Sprintf("position %d holds index %d", i, p.Index), nil)
		}
		if p.Image == nil {
			return types.NewPageError(types.ErrAssembly, "page has no image", i+1, nil)
		}
	}
	return nil
}
