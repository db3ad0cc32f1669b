package pdf

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ledongthucpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/natsort"
	"pdf-translator/internal/types"
)

const popplerInstallHint = "poppler-utils not found, please install: " +
	"Ubuntu/Debian: apt-get install poppler-utils, " +
	"macOS: brew install poppler, " +
	"Windows: download from https://github.com/oschwartz10612/poppler-windows/releases"

// imageExtensions are the page image formats accepted in directory mode
var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// PopplerRasterizer renders PDF pages with pdftoppm
type PopplerRasterizer struct {
	// WorkDir holds the temporary rasters; empty uses the system temp dir
	WorkDir string
	// Command defaults to pdftoppm
	Command string
}

// NewPopplerRasterizer creates a rasterizer writing temporary files under workDir
func NewPopplerRasterizer(workDir string) *PopplerRasterizer {
	return &PopplerRasterizer{WorkDir: workDir, Command: "pdftoppm"}
}

// Rasterize renders every page of the PDF at path as PNG at dpi. The source
// id of each page is the file name pdftoppm produced (page-1.png, page-01.png
// and so on), which sorts naturally in page order.
func (r *PopplerRasterizer) Rasterize(ctx context.Context, path string, dpi int) ([]SourcePage, error) {
	pageCount, err := PageCount(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRasterize, "failed to read PDF", path, err)
	}
	if pageCount == 0 {
		return nil, nil
	}

	command := r.Command
	if command == "" {
		command = "pdftoppm"
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRasterize, "pdftoppm is not available", popplerInstallHint, err)
	}

	if r.WorkDir != "" {
		if err := os.MkdirAll(r.WorkDir, 0755); err != nil {
			return nil, types.NewAppError(types.ErrRasterize, "failed to create work dir", err)
		}
	}
	tempDir, err := os.MkdirTemp(r.WorkDir, "pdf2img_*")
	if err != nil {
		return nil, types.NewAppError(types.ErrRasterize, "failed to create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	logger.Debug("converting PDF to images",
		logger.String("pdf", filepath.Base(path)),
		logger.Int("pages", pageCount),
		logger.Int("dpi", dpi))

	args := []string{"-png", "-r", strconv.Itoa(dpi), path, filepath.Join(tempDir, "page")}
	cmd := exec.CommandContext(ctx, command, args...)
	prepareRasterCommand(cmd)

	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewAppErrorWithDetails(types.ErrRasterize, "pdftoppm failed", strings.TrimSpace(string(output)), err)
	}

	pages, err := loadImageDir(tempDir)
	if err != nil {
		return nil, err
	}
	if len(pages) != pageCount {
		logger.Error("rendered page count differs from PDF page count", nil,
			logger.Int("expected", pageCount),
			logger.Int("rendered", len(pages)))
		return nil, types.NewAppErrorWithDetails(types.ErrRasterize, "rendered page count differs from PDF page count",
			fmt.Sprintf("expected %d, rendered %d", pageCount, len(pages)), nil)
	}

	logger.Info("PDF rasterized",
		logger.String("pdf", filepath.Base(path)),
		logger.Int("pages", len(pages)))
	return pages, nil
}

// PageCount returns the number of pages in a PDF, trying ledongthuc/pdf first
// and pdfcpu second.
func PageCount(path string) (int, error) {
	count, err := pageCountLedongthuc(path)
	if err == nil {
		return count, nil
	}
	logger.Debug("ledongthuc page count failed, trying pdfcpu", logger.Err(err))

	count, cpuErr := api.PageCountFile(path)
	if cpuErr != nil {
		return 0, fmt.Errorf("page count: %w (pdfcpu: %v)", err, cpuErr)
	}
	return count, nil
}

func pageCountLedongthuc(path string) (count int, err error) {
	// ledongthuc/pdf panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, r, err := ledongthucpdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

// DirectoryRasterizer treats every PNG or JPEG file in a directory as one
// page. dpi is ignored.
type DirectoryRasterizer struct{}

// Rasterize loads the page images in dir
func (DirectoryRasterizer) Rasterize(ctx context.Context, dir string, dpi int) ([]SourcePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return loadImageDir(dir)
}

// AutoRasterizer dispatches on the input: directories of images are read
// as-is, .pdf files go through pdftoppm.
type AutoRasterizer struct {
	PDF *PopplerRasterizer
	Dir DirectoryRasterizer
}

// NewAutoRasterizer creates an AutoRasterizer using workDir for temporary rasters
func NewAutoRasterizer(workDir string) *AutoRasterizer {
	return &AutoRasterizer{PDF: NewPopplerRasterizer(workDir)}
}

// Rasterize implements the pipeline's rasterizer contract
func (a *AutoRasterizer) Rasterize(ctx context.Context, path string, dpi int) ([]SourcePage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "cannot open input", path, err)
	}
	if info.IsDir() {
		return a.Dir.Rasterize(ctx, path, dpi)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unsupported input", path, nil)
	}
	return a.PDF.Rasterize(ctx, path, dpi)
}

// loadImageDir decodes every image file in dir, in natural order of file name
func loadImageDir(dir string) ([]SourcePage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRasterize, "failed to read image directory", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	natsort.Sort(names)

	pages := make([]SourcePage, 0, len(names))
	for _, name := range names {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrRasterize, "failed to load image", name, err)
		}
		pages = append(pages, SourcePage{ID: name, Image: img})
	}
	return pages, nil
}

// loadImage loads an image from file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
