package pdf

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-translator/internal/types"
)

// DefaultDPI is the resolution pages are rasterized at
const DefaultDPI = 300

// fixedDate stamps FPDFWriter output so identical pages give identical bytes
var fixedDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// pointsFor converts a pixel length at dpi to PDF points
func pointsFor(px, dpi int) float64 {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return float64(px) * 72 / float64(dpi)
}

func encodePNG(img image.Image) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &buf, nil
}

// FPDFWriter writes one page per image with go-pdf/fpdf. Each page is sized
// to its image at DPI. Output bytes depend only on the page images.
type FPDFWriter struct {
	DPI int
}

// WritePages implements PageWriter
func (w FPDFWriter) WritePages(ctx context.Context, out io.Writer, pages []Page) error {
	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt"})
	doc.SetCreationDate(fixedDate)
	doc.SetModificationDate(fixedDate)
	doc.SetCatalogSort(true)
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, err := encodePNG(p.Image)
		if err != nil {
			return types.NewPageError(types.ErrAssembly, "failed to encode page image", p.Index+1, err)
		}

		b := p.Image.Bounds()
		width, height := pointsFor(b.Dx(), w.DPI), pointsFor(b.Dy(), w.DPI)
		name := "page" + strconv.Itoa(p.Index)
		opts := fpdf.ImageOptions{ImageType: "PNG"}

		doc.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
		doc.RegisterImageOptionsReader(name, opts, buf)
		doc.ImageOptions(name, 0, 0, width, height, false, opts, 0, "")
		if doc.Err() {
			return types.NewPageError(types.ErrAssembly, "PDF writer rejected page", p.Index+1, doc.Error())
		}
	}
	return doc.Output(out)
}

// PDFCPUWriter imports the page images with pdfcpu, one full-bleed page per
// image. pdfcpu stamps the current time into the file.
type PDFCPUWriter struct {
	DPI int
}

// WritePages implements PageWriter
func (w PDFCPUWriter) WritePages(ctx context.Context, out io.Writer, pages []Page) error {
	readers := make([]io.Reader, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, err := encodePNG(p.Image)
		if err != nil {
			return types.NewPageError(types.ErrAssembly, "failed to encode page image", p.Index+1, err)
		}
		readers = append(readers, buf)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = pdftypes.Full
	imp.DPI = w.DPI
	if imp.DPI <= 0 {
		imp.DPI = DefaultDPI
	}

	if err := api.ImportImages(nil, out, readers, imp, model.NewDefaultConfiguration()); err != nil {
		return types.NewAppError(types.ErrAssembly, "pdfcpu rejected page images", err)
	}
	return nil
}

// Validate runs pdfcpu's validator over an assembled file
func Validate(path string) error {
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return types.NewAppErrorWithDetails(types.ErrAssembly, "output PDF failed validation", path, err)
	}
	return nil
}
