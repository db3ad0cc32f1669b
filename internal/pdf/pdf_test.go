package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

func testImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testPages(indices ...int) []Page {
	pages := make([]Page, len(indices))
	for i, idx := range indices {
		pages[i] = Page{Index: idx, Image: testImage(60, 80, color.White)}
	}
	return pages
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

type fakeWriter struct {
	err   error
	calls int
}

func (f *fakeWriter) WritePages(ctx context.Context, w io.Writer, pages []Page) error {
	f.calls++
	if f.err != nil {
		w.Write([]byte("partial"))
		return f.err
	}
	for _, p := range pages {
		w.Write([]byte{byte('0' + p.Index)})
	}
	return nil
}

func TestCheckOrder(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		wantErr bool
	}{
		{"contiguous", []int{0, 1, 2}, false},
		{"single", []int{0}, false},
		{"gap", []int{0, 1, 3}, true},
		{"duplicate", []int{0, 1, 1}, true},
		{"unsorted", []int{1, 0, 2}, true},
		{"not starting at zero", []int{1, 2, 3}, true},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOrder(testPages(tt.indices...))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, types.HasCode(err, types.ErrOrderingInvariant), "got %v", err)
		})
	}
}

func TestAssemblerRejectsGaps(t *testing.T) {
	w := &fakeWriter{}
	out := filepath.Join(t.TempDir(), "out.pdf")

	_, err := NewAssembler(w).Assemble(context.Background(), testPages(0, 1, 3), out)
	assert.True(t, types.HasCode(err, types.ErrOrderingInvariant))
	assert.Equal(t, 0, w.calls, "writer must not run when the order check fails")
	assert.NoFileExists(t, out)
}

func TestAssemblerWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "doc_translated.pdf")

	doc, err := NewAssembler(&fakeWriter{}).Assemble(context.Background(), testPages(0, 1, 2), out)
	require.NoError(t, err)
	assert.Equal(t, &Document{Path: out, Pages: 3}, doc)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "012", string(data))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be gone")
}

func TestAssemblerWriterFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "doc.pdf")

	_, err := NewAssembler(&fakeWriter{err: errors.New("corrupt image")}).Assemble(context.Background(), testPages(0), out)
	assert.True(t, types.HasCode(err, types.ErrAssembly))
	assert.NoFileExists(t, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFPDFWriter(t *testing.T) {
	pages := []Page{
		{Index: 0, Image: testImage(300, 600, color.White)},
		{Index: 1, Image: testImage(600, 300, color.Black)},
	}

	var a, b bytes.Buffer
	w := FPDFWriter{DPI: 150}
	require.NoError(t, w.WritePages(context.Background(), &a, pages))
	require.NoError(t, w.WritePages(context.Background(), &b, pages))
	assert.Equal(t, a.Bytes(), b.Bytes(), "output must be reproducible")

	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(path, a.Bytes(), 0644))

	n, err := PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, Validate(path))

	dims, err := api.PageDimsFile(path)
	require.NoError(t, err)
	require.Len(t, dims, 2)
	assert.InDelta(t, 144, dims[0].Width, 0.5)
	assert.InDelta(t, 288, dims[0].Height, 0.5)
}

func TestPDFCPUWriter(t *testing.T) {
	var buf bytes.Buffer
	err := PDFCPUWriter{DPI: 300}.WritePages(context.Background(), &buf, []Page{
		{Index: 0, Image: testImage(120, 240, color.White)},
		{Index: 1, Image: testImage(120, 240, color.Gray{Y: 128})},
		{Index: 2, Image: testImage(240, 120, color.White)},
	})
	require.NoError(t, err)

	n, err := api.PageCount(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWritersHonourCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, FPDFWriter{}.WritePages(ctx, io.Discard, testPages(0)), context.Canceled)
	assert.ErrorIs(t, PDFCPUWriter{}.WritePages(ctx, io.Discard, testPages(0)), context.Canceled)
}

func TestDirectoryRasterizerNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"p10.png", "p2.png", "p1.png"} {
		writePNG(t, filepath.Join(dir, name), testImage(10, 10, color.White))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	pages, err := DirectoryRasterizer{}.Rasterize(context.Background(), dir, 300)
	require.NoError(t, err)

	var ids []string
	for _, p := range pages {
		ids = append(ids, p.ID)
		assert.Equal(t, 10, p.Image.Bounds().Dx())
	}
	assert.Equal(t, []string{"p1.png", "p2.png", "p10.png"}, ids)
}

func TestDirectoryRasterizerBadImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.png"), []byte("not a png"), 0644))

	_, err := DirectoryRasterizer{}.Rasterize(context.Background(), dir, 300)
	assert.True(t, types.HasCode(err, types.ErrRasterize))
}

func TestAutoRasterizer(t *testing.T) {
	dir := t.TempDir()
	r := NewAutoRasterizer(dir)

	t.Run("missing input", func(t *testing.T) {
		_, err := r.Rasterize(context.Background(), filepath.Join(dir, "missing.pdf"), 300)
		assert.True(t, types.HasCode(err, types.ErrInvalidInput))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "doc.docx")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		_, err := r.Rasterize(context.Background(), path, 300)
		assert.True(t, types.HasCode(err, types.ErrInvalidInput))
	})

	t.Run("missing pdftoppm", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FPDFWriter{}.WritePages(context.Background(), &buf, testPages(0)))
		path := filepath.Join(dir, "doc.pdf")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

		r := &AutoRasterizer{PDF: &PopplerRasterizer{WorkDir: dir, Command: "pdftoppm-does-not-exist"}}
		_, err := r.Rasterize(context.Background(), path, 300)
		assert.True(t, types.HasCode(err, types.ErrRasterize))
		assert.Contains(t, err.Error(), "poppler-utils")
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		path := filepath.Join(dir, "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 garbage"), 0644))
		_, err := r.Rasterize(context.Background(), path, 300)
		assert.True(t, types.HasCode(err, types.ErrRasterize))
	})
}

// fakePdftoppm writes a script standing in for pdftoppm that copies seed to
// <prefix>-<n>.png for every n in pages.
func fakePdftoppm(t *testing.T, dir string, pages ...int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for pdftoppm")
	}
	seed := filepath.Join(dir, "seed.png")
	writePNG(t, seed, testImage(40, 60, color.White))

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	for _, n := range pages {
		// args: -png -r <dpi> <pdf> <prefix>
		script.WriteString(fmt.Sprintf("cp %q \"$5-%d.png\"\n", seed, n))
	}
	path := filepath.Join(dir, "fake-pdftoppm")
	require.NoError(t, os.WriteFile(path, []byte(script.String()), 0755))
	return path
}

func writeTestPDF(t *testing.T, path string, pages int) {
	t.Helper()
	indices := make([]int, pages)
	for i := range indices {
		indices[i] = i
	}
	var buf bytes.Buffer
	require.NoError(t, FPDFWriter{}.WritePages(context.Background(), &buf, testPages(indices...)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestPopplerRasterizerPageCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, path, 3)

	t.Run("every page rendered", func(t *testing.T) {
		r := &PopplerRasterizer{WorkDir: dir, Command: fakePdftoppm(t, t.TempDir(), 1, 2, 3)}
		pages, err := r.Rasterize(context.Background(), path, 72)
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Equal(t, "page-1.png", pages[0].ID)
		assert.Equal(t, "page-3.png", pages[2].ID)
	})

	t.Run("missing page is an error", func(t *testing.T) {
		r := &PopplerRasterizer{WorkDir: dir, Command: fakePdftoppm(t, t.TempDir(), 1)}
		pages, err := r.Rasterize(context.Background(), path, 72)
		require.Error(t, err)
		assert.Nil(t, pages)
		assert.True(t, types.HasCode(err, types.ErrRasterize))
		assert.Contains(t, err.Error(), "expected 3, rendered 1")
	})

	t.Run("temp rasters removed", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(dir, "pdf2img_*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}
