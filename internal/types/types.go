// Package types defines the configuration and error types shared by the
// translation pipeline packages.
package types

import (
	"errors"
	"fmt"
)

// Config 应用配置
type Config struct {
	// API 设置（ModelScope / OpenAI 兼容接口）
	APIKey         string `json:"api_key" toml:"api_key"`
	BaseURL        string `json:"base_url" toml:"base_url"`
	VisionModel    string `json:"vision_model" toml:"vision_model"`
	TranslateModel string `json:"translate_model" toml:"translate_model"`

	// Backends: "llm" or "tesseract" for extraction, "llm" or "deepl" for translation
	Extractor  string `json:"extractor" toml:"extractor"`
	Translator string `json:"translator" toml:"translator"`
	DeepLURL   string `json:"deepl_url" toml:"deepl_url"`
	DeepLKey   string `json:"deepl_key" toml:"deepl_key"`

	SourceLang string `json:"source_lang" toml:"source_lang"` // BCP 47, e.g. "zh"
	TargetLang string `json:"target_lang" toml:"target_lang"` // BCP 47, e.g. "en"

	DPI             int    `json:"dpi" toml:"dpi"`
	CoordinateSpace string `json:"coordinate_space" toml:"coordinate_space"` // model, page, normalized

	PageConcurrency   int     `json:"page_concurrency" toml:"page_concurrency"`
	RegionConcurrency int     `json:"region_concurrency" toml:"region_concurrency"`
	RequestTimeout    int     `json:"request_timeout_seconds" toml:"request_timeout_seconds"`
	MaxRetries        int     `json:"max_retries" toml:"max_retries"`
	RequestsPerSecond float64 `json:"requests_per_second" toml:"requests_per_second"` // 0 = unlimited

	MinFontSize float64 `json:"min_font_size" toml:"min_font_size"` // pixels
	MaxFontSize float64 `json:"max_font_size" toml:"max_font_size"` // pixels, 0 = box height
	FontPath    string  `json:"font_path" toml:"font_path"`

	Assembler         string `json:"assembler" toml:"assembler"` // fpdf (reproducible bytes) or pdfcpu
	WorkDirectory     string `json:"work_directory" toml:"work_directory"`
	OutputDirectory   string `json:"output_directory" toml:"output_directory"`
	KeepIntermediates bool   `json:"keep_intermediates" toml:"keep_intermediates"`
	CachePath         string `json:"cache_path" toml:"cache_path"` // empty disables the translation cache

	LogFile  string `json:"log_file" toml:"log_file"`
	LogLevel string `json:"log_level" toml:"log_level"`

	ServerAddr string `json:"server_addr" toml:"server_addr"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrEmptyDocument     ErrorCode = "EMPTY_DOCUMENT"
	ErrExtraction        ErrorCode = "EXTRACTION_ERROR"
	ErrTranslation       ErrorCode = "TRANSLATION_ERROR"
	ErrOrderingInvariant ErrorCode = "ORDERING_INVARIANT"
	ErrAssembly          ErrorCode = "ASSEMBLY_ERROR"
	ErrRasterize         ErrorCode = "RASTERIZE_ERROR"
	ErrConfig            ErrorCode = "CONFIG_ERROR"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrAPICall           ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit      ErrorCode = "API_RATE_LIMIT"
	ErrCancelled         ErrorCode = "CANCELLED"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Page    int       `json:"page,omitempty"` // 1-based, 0 when not page specific
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPageError creates a new AppError bound to a 1-based page number
func NewPageError(code ErrorCode, message string, page int, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsFatal reports whether an error code aborts a whole run. Extraction and
// translation failures only degrade a page or region.
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrExtraction, ErrTranslation, ErrAPICall, ErrAPIRateLimit:
		return false
	default:
		return true
	}
}
