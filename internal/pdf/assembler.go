package pdf

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// PageWriter encodes ordered page images as one PDF
type PageWriter interface {
	WritePages(ctx context.Context, w io.Writer, pages []Page) error
}

// Assembler writes composited pages into the output document
type Assembler struct {
	writer PageWriter
}

// NewAssembler creates an Assembler using w to encode pages
func NewAssembler(w PageWriter) *Assembler {
	return &Assembler{writer: w}
}

// Assemble verifies the page order and writes all pages to outPath. The file
// appears atomically: it is written to a temporary file in the same
// directory and renamed into place.
func (a *Assembler) Assemble(ctx context.Context, pages []Page, outPath string) (*Document, error) {
	if err := CheckOrder(pages); err != nil {
		logger.Error("refusing to assemble pages", err, logger.Int("pages", len(pages)))
		return nil, err
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, types.NewAppError(types.ErrAssembly, "failed to create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return nil, types.NewAppError(types.ErrAssembly, "failed to create temporary file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := a.writer.WritePages(ctx, tmp, pages); err != nil {
		tmp.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if types.HasCode(err, types.ErrAssembly) {
			return nil, err
		}
		return nil, types.NewAppError(types.ErrAssembly, "failed to write PDF", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, types.NewAppError(types.ErrAssembly, "failed to write PDF", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, types.NewAppError(types.ErrAssembly, "failed to move PDF into place", err)
	}

	logger.Info("PDF assembled",
		logger.String("path", outPath),
		logger.Int("pages", len(pages)))
	return &Document{Path: outPath, Pages: len(pages)}, nil
}
