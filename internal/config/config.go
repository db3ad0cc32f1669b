// Package config provides configuration management for the PDF translator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdftrans-config.json"
	// EnvModelScopeAPIKey is checked first for the model API key
	EnvModelScopeAPIKey = "MODELSCOPE_API_KEY"
	// EnvOpenAIAPIKey is the fallback for OpenAI compatible endpoints
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL overrides the API base URL when the file leaves it empty
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvDeepLAPIKey is the DeepL authentication key
	EnvDeepLAPIKey = "DEEPL_API_KEY"

	DefaultBaseURL        = "https://api-inference.modelscope.cn/v1/"
	DefaultVisionModel    = "Qwen/Qwen2.5-VL-7B-Instruct"
	DefaultTranslateModel = "Qwen/Qwen2.5-7B-Instruct"
	DefaultDeepLURL       = "https://api-free.deepl.com"

	DefaultSourceLang        = "zh"
	DefaultTargetLang        = "en"
	DefaultDPI               = 300
	DefaultCoordinateSpace   = "model"
	DefaultPageConcurrency   = 3
	DefaultRegionConcurrency = 4
	// DefaultRequestTimeout is in seconds and bounds a single remote call
	DefaultRequestTimeout = 120
	DefaultMaxRetries     = 3
	// DefaultMinFontSize is in pixels at 300 dpi
	DefaultMinFontSize     = 10
	DefaultAssembler       = "fpdf"
	DefaultOutputDirectory = "outputs"
	DefaultLogLevel        = "info"
	DefaultServerAddr      = ":8080"
)

// Backend names accepted in the configuration
const (
	BackendLLM       = "llm"
	BackendTesseract = "tesseract"
	BackendDeepL     = "deepl"
	AssemblerPDFCPU  = "pdfcpu"
	AssemblerFPDF    = "fpdf"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
// A path ending in .toml is read and written as TOML, anything else as JSON.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdftrans", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *types.Config {
	cfg := &types.Config{KeepIntermediates: true}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *types.Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.TranslateModel == "" {
		cfg.TranslateModel = DefaultTranslateModel
	}
	if cfg.Extractor == "" {
		cfg.Extractor = BackendLLM
	}
	if cfg.Translator == "" {
		cfg.Translator = BackendLLM
	}
	if cfg.DeepLURL == "" {
		cfg.DeepLURL = DefaultDeepLURL
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = DefaultSourceLang
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = DefaultTargetLang
	}
	if cfg.DPI == 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.CoordinateSpace == "" {
		cfg.CoordinateSpace = DefaultCoordinateSpace
	}
	if cfg.PageConcurrency == 0 {
		cfg.PageConcurrency = DefaultPageConcurrency
	}
	if cfg.RegionConcurrency == 0 {
		cfg.RegionConcurrency = DefaultRegionConcurrency
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MinFontSize == 0 {
		cfg.MinFontSize = DefaultMinFontSize
	}
	if cfg.Assembler == "" {
		cfg.Assembler = DefaultAssembler
	}
	if cfg.OutputDirectory == "" {
		cfg.OutputDirectory = DefaultOutputDirectory
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = DefaultServerAddr
	}
}

// applyEnv fills secrets and endpoints the file left empty
func applyEnv(cfg *types.Config) {
	if cfg.APIKey == "" {
		cfg.APIKey = firstEnv(EnvModelScopeAPIKey, EnvOpenAIAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv(EnvOpenAIBaseURL)
	}
	if cfg.DeepLKey == "" {
		cfg.DeepLKey = os.Getenv(EnvDeepLAPIKey)
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (m *ConfigManager) isTOML() bool {
	return strings.EqualFold(filepath.Ext(m.configPath), ".toml")
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values.
// Environment variables fill the API key, base URL and DeepL key when the file
// leaves them empty.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	cfg := &types.Config{}
	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		cfg.KeepIntermediates = true
	case err != nil:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	default:
		if m.isTOML() {
			err = toml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			logger.Error("invalid config file format", err, logger.String("path", m.configPath))
			return types.NewAppErrorWithDetails(types.ErrConfig, "invalid config file format", m.configPath, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	m.config = cfg

	logger.Info("configuration loaded",
		logger.String("path", m.configPath),
		logger.Bool("apiKeySet", cfg.APIKey != ""),
		logger.String("baseURL", cfg.BaseURL),
		logger.String("extractor", cfg.Extractor),
		logger.String("translator", cfg.Translator))
	return nil
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	var (
		data []byte
		err  error
	)
	if m.isTOML() {
		data, err = toml.Marshal(m.GetConfig())
	} else {
		data, err = json.MarshalIndent(m.GetConfig(), "", "  ")
	}
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return DefaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// SetAPIKey sets the model API key and saves the configuration.
func (m *ConfigManager) SetAPIKey(key string) error {
	if m.config == nil {
		m.config = DefaultConfig()
	}
	m.config.APIKey = key
	return m.Save()
}

// RequiresAPIKey reports whether any selected backend calls the model API.
func RequiresAPIKey(cfg *types.Config) bool {
	return cfg.Extractor == BackendLLM || cfg.Translator == BackendLLM
}

// Validate checks backend names, language tags and numeric ranges.
func Validate(cfg *types.Config) error {
	invalid := func(format string, args ...interface{}) error {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", fmt.Sprintf(format, args...), nil)
	}

	switch cfg.Extractor {
	case BackendLLM, BackendTesseract:
	default:
		return invalid("unknown extractor %q", cfg.Extractor)
	}
	switch cfg.Translator {
	case BackendLLM, BackendDeepL:
	default:
		return invalid("unknown translator %q", cfg.Translator)
	}
	switch cfg.Assembler {
	case AssemblerPDFCPU, AssemblerFPDF:
	default:
		return invalid("unknown assembler %q", cfg.Assembler)
	}
	switch cfg.CoordinateSpace {
	case "model", "page", "normalized":
	default:
		return invalid("unknown coordinate space %q", cfg.CoordinateSpace)
	}

	src, err := language.Parse(cfg.SourceLang)
	if err != nil {
		return invalid("source language %q: %v", cfg.SourceLang, err)
	}
	dst, err := language.Parse(cfg.TargetLang)
	if err != nil {
		return invalid("target language %q: %v", cfg.TargetLang, err)
	}
	if src == dst {
		return invalid("source and target language are both %s", src)
	}

	if cfg.DPI < 36 || cfg.DPI > 1200 {
		return invalid("dpi %d out of range [36, 1200]", cfg.DPI)
	}
	if cfg.PageConcurrency < 1 || cfg.RegionConcurrency < 1 {
		return invalid("concurrency must be at least 1")
	}
	if cfg.RequestTimeout < 0 || cfg.MaxRetries < 0 || cfg.RequestsPerSecond < 0 {
		return invalid("timeouts, retries and rate limits must not be negative")
	}
	if cfg.MinFontSize <= 0 {
		return invalid("min font size must be positive")
	}
	if cfg.MaxFontSize > 0 && cfg.MaxFontSize < cfg.MinFontSize {
		return invalid("max font size %.1f below min font size %.1f", cfg.MaxFontSize, cfg.MinFontSize)
	}
	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		return invalid("unknown log level %q", cfg.LogLevel)
	}
	return nil
}
