// Package app wires configuration into a ready to run translation pipeline.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"pdf-translator/internal/compose"
	"pdf-translator/internal/config"
	"pdf-translator/internal/llm"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/translate"
	"pdf-translator/internal/types"
	"pdf-translator/internal/vision"
	"pdf-translator/internal/vision/einovision"
	"pdf-translator/internal/vision/tesseract"
)

// translateTemperature keeps translations close to literal
const translateTemperature = float32(0.3)

// App owns the configuration and the components built from it
type App struct {
	config   *config.ConfigManager
	cfg      *types.Config
	pipeline *pipeline.Pipeline
	cache    *translate.TranslationCache
}

// NewApp loads the configuration at configPath (empty for the default
// location), validates it and builds the pipeline.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	mgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	return NewAppWithConfig(ctx, mgr)
}

// NewAppWithConfig builds an App from an already loaded ConfigManager
func NewAppWithConfig(ctx context.Context, mgr *config.ConfigManager) (*App, error) {
	cfg := mgr.GetConfig()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if config.RequiresAPIKey(cfg) && cfg.APIKey == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "API key not configured",
			fmt.Sprintf("set %s or %s, or api_key in %s", config.EnvModelScopeAPIKey, config.EnvOpenAIAPIKey, mgr.GetConfigPath()), nil)
	}

	a := &App{config: mgr, cfg: cfg}
	if err := a.build(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Config returns the effective configuration
func (a *App) Config() *types.Config {
	return a.cfg
}

// Pipeline returns the configured pipeline
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// TranslateFile runs one document through the pipeline. outputDir overrides
// the configured output directory when not empty.
func (a *App) TranslateFile(ctx context.Context, input, outputDir string, progress func(pipeline.Event)) (string, error) {
	if outputDir == "" {
		outputDir = a.cfg.OutputDirectory
	}
	out, err := a.pipeline.Run(ctx, input, outputDir, progress)
	a.saveCache()
	return out, err
}

// Shutdown persists the translation cache
func (a *App) Shutdown() {
	a.saveCache()
}

func (a *App) saveCache() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Save(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	extractor, err := a.buildExtractor(ctx, timeout)
	if err != nil {
		return err
	}
	translator, err := a.buildTranslator(ctx, timeout, limiter)
	if err != nil {
		return err
	}

	compositor, err := compose.New(compose.Options{
		FontPath:    cfg.FontPath,
		MinFontSize: cfg.MinFontSize,
		MaxFontSize: cfg.MaxFontSize,
	})
	if err != nil {
		return err
	}

	var writer pdf.PageWriter = pdf.FPDFWriter{DPI: cfg.DPI}
	if cfg.Assembler == config.AssemblerPDFCPU {
		writer = pdf.PDFCPUWriter{DPI: cfg.DPI}
	}

	workDir := cfg.WorkDirectory
	if workDir == "" {
		workDir = filepath.Join(cfg.OutputDirectory, ".work")
	}

	a.pipeline = pipeline.New(pipeline.Options{
		DPI:               cfg.DPI,
		PageConcurrency:   cfg.PageConcurrency,
		RegionConcurrency: cfg.RegionConcurrency,
		ExtractTimeout:    timeout,
		KeepIntermediates: cfg.KeepIntermediates,
	},
		pdf.NewAutoRasterizer(workDir),
		vision.NewLimited(limiter, extractor),
		translator,
		compositor,
		pdf.NewAssembler(writer),
	)

	logger.Info("pipeline configured",
		logger.String("extractor", cfg.Extractor),
		logger.String("translator", cfg.Translator),
		logger.String("assembler", cfg.Assembler),
		logger.Int("dpi", cfg.DPI),
		logger.Bool("cache", a.cache != nil))
	return nil
}

func (a *App) buildExtractor(ctx context.Context, timeout time.Duration) (vision.Extractor, error) {
	cfg := a.cfg
	if cfg.Extractor == config.BackendTesseract {
		ex, err := tesseract.New(0)
		if err != nil {
			return nil, err
		}
		return ex, nil
	}

	analyzer, err := einovision.New(ctx, llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.VisionModel,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	src := language.MustParse(cfg.SourceLang)
	return vision.NewLLMExtractor(analyzer, vision.LLMOptions{
		Space:        vision.CoordinateSpace(cfg.CoordinateSpace),
		LanguageHint: translate.LanguageName(src),
	}), nil
}

// buildTranslator stacks rate limit, retry and cache around the configured
// backend: Cached(Retrying(Limited(backend))). Every attempt that reaches the
// backend waits for the limiter; cache hits do not. The per-attempt timeout
// lives in the retry layer.
func (a *App) buildTranslator(ctx context.Context, timeout time.Duration, limiter *rate.Limiter) (translate.Translator, error) {
	cfg := a.cfg
	src := language.MustParse(cfg.SourceLang)
	dst := language.MustParse(cfg.TargetLang)

	var backend translate.Translator
	switch cfg.Translator {
	case config.BackendDeepL:
		if cfg.DeepLKey == "" {
			return nil, types.NewAppErrorWithDetails(types.ErrConfig, "DeepL key not configured", config.EnvDeepLAPIKey, nil)
		}
		backend = translate.NewDeepLTranslator(cfg.DeepLURL, cfg.DeepLKey, src, dst, &http.Client{})
	default:
		temp := translateTemperature
		client, err := llm.New(ctx, llm.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.TranslateModel,
			Timeout:     timeout,
			Temperature: &temp,
		})
		if err != nil {
			return nil, err
		}
		backend = translate.NewLLMTranslator(client, src, dst)
	}

	if cfg.CachePath != "" {
		a.cache = translate.NewTranslationCache(cfg.CachePath, cfg.SourceLang+">"+cfg.TargetLang)
		if err := a.cache.Load(); err != nil {
			logger.Warn("failed to load translation cache, starting empty",
				logger.String("path", cfg.CachePath),
				logger.Err(err))
		}
	}
	return stackTranslator(backend, limiter, translate.RetryOptions{
		MaxAttempts: cfg.MaxRetries,
		Timeout:     timeout,
	}, a.cache), nil
}

// stackTranslator builds Cached(Retrying(Limited(backend))). A nil limiter or
// cache leaves that layer out.
func stackTranslator(backend translate.Translator, limiter *rate.Limiter, retry translate.RetryOptions, cache *translate.TranslationCache) translate.Translator {
	var t translate.Translator = translate.NewRetrying(translate.NewLimited(limiter, backend), retry)
	if cache != nil {
		t = translate.NewCached(t, cache)
	}
	return t
}
