//go:build !ocr

package tesseract

import (
	"context"
	"errors"
	"testing"

	"pdf-translator/internal/types"
)

func TestStubReportsNotEnabled(t *testing.T) {
	if Available {
		t.Fatal("stub must report Tesseract as unavailable")
	}

	_, err := New(30)
	if !errors.Is(err, ErrOCRNotEnabled) {
		t.Errorf("New() error = %v, want ErrOCRNotEnabled", err)
	}
	if !types.HasCode(err, types.ErrConfig) {
		t.Errorf("New() error code = %q, want %q", types.CodeOf(err), types.ErrConfig)
	}

	var e *Extractor
	if _, err := e.Extract(context.Background(), nil); !errors.Is(err, ErrOCRNotEnabled) {
		t.Errorf("Extract() error = %v, want ErrOCRNotEnabled", err)
	}
}
