package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"plain", NewAppError(ErrConfig, "missing api key", nil), "missing api key"},
		{"with details", NewAppErrorWithDetails(ErrAssembly, "writer rejected page", "page 3", nil), "writer rejected page: page 3"},
		{"with page and cause", NewPageError(ErrExtraction, "analyzer failed", 2, cause), "page 2: analyzer failed: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := NewAppError(ErrAPIRateLimit, "rate limited", nil)
	outer := NewAppError(ErrTranslation, "translation failed", inner)
	wrapped := fmt.Errorf("region 4: %w", outer)

	if !HasCode(wrapped, ErrTranslation) {
		t.Error("expected ErrTranslation in chain")
	}
	if !HasCode(wrapped, ErrAPIRateLimit) {
		t.Error("expected nested ErrAPIRateLimit in chain")
	}
	if HasCode(wrapped, ErrAssembly) {
		t.Error("did not expect ErrAssembly")
	}
	if HasCode(errors.New("plain"), ErrTranslation) {
		t.Error("plain errors carry no code")
	}
	if CodeOf(wrapped) != ErrTranslation {
		t.Errorf("CodeOf = %q, want %q", CodeOf(wrapped), ErrTranslation)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []ErrorCode{ErrEmptyDocument, ErrOrderingInvariant, ErrAssembly, ErrRasterize, ErrCancelled}
	for _, code := range fatal {
		if !IsFatal(code) {
			t.Errorf("%s should be fatal", code)
		}
	}
	for _, code := range []ErrorCode{ErrExtraction, ErrTranslation} {
		if IsFatal(code) {
			t.Errorf("%s should be recoverable", code)
		}
	}
}
