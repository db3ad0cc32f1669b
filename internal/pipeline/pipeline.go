package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/translate"
	"pdf-translator/internal/types"
	"pdf-translator/internal/vision"
)

const (
	DefaultPageConcurrency   = 3
	DefaultRegionConcurrency = 4
)

// Options tunes a Pipeline
type Options struct {
	DPI               int
	PageConcurrency   int
	RegionConcurrency int
	// ExtractTimeout bounds one extractor call; zero means no limit
	ExtractTimeout time.Duration
	// TranslateTimeout bounds one translator call; zero means no limit
	TranslateTimeout time.Duration
	// KeepIntermediates writes every composited page as PNG next to the output
	KeepIntermediates bool
}

// Pipeline translates documents page by page
type Pipeline struct {
	opts       Options
	rasterizer Rasterizer
	extractor  vision.Extractor
	translator translate.Translator
	compositor Compositor
	assembler  Assembler
}

// New creates a Pipeline from its collaborators
func New(opts Options, r Rasterizer, e vision.Extractor, t translate.Translator, c Compositor, a Assembler) *Pipeline {
	if opts.DPI <= 0 {
		opts.DPI = pdf.DefaultDPI
	}
	if opts.PageConcurrency <= 0 {
		opts.PageConcurrency = DefaultPageConcurrency
	}
	if opts.RegionConcurrency <= 0 {
		opts.RegionConcurrency = DefaultRegionConcurrency
	}
	return &Pipeline{
		opts:       opts,
		rasterizer: r,
		extractor:  e,
		translator: t,
		compositor: c,
		assembler:  a,
	}
}

// OutputPath returns where Run writes the translated document for input
func OutputPath(input, outputDir string) string {
	name := documentName(input)
	return filepath.Join(outputDir, name, name+"_translated.pdf")
}

// IntermediateName returns the file name of a composited page image. index is
// 0-based; names sort naturally in page order.
func IntermediateName(name string, index int) string {
	return fmt.Sprintf("%s_page_%d_translated.png", name, index+1)
}

func documentName(input string) string {
	base := filepath.Base(filepath.Clean(input))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run translates the document at input and returns the path of the output
// PDF. progress receives stage events and may be nil.
func (p *Pipeline) Run(ctx context.Context, input, outputDir string, progress func(Event)) (string, error) {
	return p.RunTracked(ctx, input, outputDir, NewProgress(progress))
}

// RunTracked is Run with a caller owned Progress that can be polled with
// Snapshot while the run is in flight.
func (p *Pipeline) RunTracked(ctx context.Context, input, outputDir string, tracker *Progress) (string, error) {
	start := time.Now()
	log := logger.With(logger.String("input", filepath.Base(input)))

	src, err := p.rasterizer.Rasterize(ctx, input, p.opts.DPI)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		log.Error("rasterization failed", err)
		return "", err
	}
	if len(src) == 0 {
		return "", types.NewAppErrorWithDetails(types.ErrEmptyDocument, "document has no pages", input, nil)
	}

	pages := Order(src)
	tracker.emit(Event{Stage: StageStarted, Total: len(pages)})
	for _, page := range pages {
		tracker.emit(Event{Stage: StageRasterized, Page: page.Index + 1, Message: page.SourceID})
	}
	log.Info("document rasterized", logger.Int("pages", len(pages)), logger.Int("dpi", p.opts.DPI))

	results := make([]CompositedPage, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.PageConcurrency)
	for _, page := range pages {
		page := page
		g.Go(func() error {
			img, err := p.processPage(gctx, page, tracker)
			if err != nil {
				return err
			}
			results[page.Index] = CompositedPage{Index: page.Index, SourceID: page.SourceID, Image: img}
			return nil
		})
	}
	if err := g.Wait(); err != nil || ctx.Err() != nil {
		log.Warn("run cancelled", logger.Err(ctx.Err()))
		return "", cancelled(ctx)
	}

	outPath := OutputPath(input, outputDir)
	if p.opts.KeepIntermediates {
		p.writeIntermediates(filepath.Dir(outPath), documentName(input), results)
	}

	doc, err := p.assembler.Assemble(ctx, results, outPath)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		log.Error("assembly failed", err)
		return "", err
	}

	tracker.emit(Event{Stage: StageAssemblyComplete, Message: doc.Path})
	log.Info("document translated",
		logger.String("output", doc.Path),
		logger.Int("pages", doc.Pages),
		logger.Duration("elapsed", time.Since(start)))
	return doc.Path, nil
}

func cancelled(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	return types.NewAppError(types.ErrCancelled, "run cancelled", cause)
}

// processPage extracts, translates and composites one page. Only
// cancellation is returned as an error; every other failure degrades the page.
func (p *Pipeline) processPage(ctx context.Context, page Page, tracker *Progress) (image.Image, error) {
	log := logger.With(logger.Page(page.Index), logger.String("source", page.SourceID))
	pageNum := page.Index + 1

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regions, err := p.extract(ctx, page.Image)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("extraction failed, keeping original page", logger.Err(err))
		tracker.emit(Event{Stage: StageDegraded, Page: pageNum, Message: "extraction failed: " + err.Error(), Err: err})
		tracker.emit(Event{Stage: StageComposited, Page: pageNum})
		return page.Image, nil
	}
	tracker.emit(Event{Stage: StageExtracted, Page: pageNum, Message: fmt.Sprintf("%d regions", len(regions))})

	if len(regions) == 0 {
		tracker.emit(Event{Stage: StageTranslated, Page: pageNum})
		tracker.emit(Event{Stage: StageComposited, Page: pageNum})
		return page.Image, nil
	}

	failed, err := p.translateRegions(ctx, regions)
	if err != nil {
		return nil, err
	}
	tracker.regions(len(regions)-failed, failed)
	if failed > 0 {
		log.Warn("some regions kept their source text",
			logger.Int("failed", failed),
			logger.Int("regions", len(regions)))
		tracker.emit(Event{Stage: StageDegraded, Page: pageNum,
			Message: fmt.Sprintf("%d of %d regions left untranslated", failed, len(regions))})
	}
	tracker.emit(Event{Stage: StageTranslated, Page: pageNum})

	img, err := p.compositor.Composite(page.Image, regions)
	if err != nil {
		log.Error("compositing failed, keeping original page", err)
		tracker.emit(Event{Stage: StageDegraded, Page: pageNum, Message: "compositing failed: " + err.Error(), Err: err})
		tracker.emit(Event{Stage: StageComposited, Page: pageNum})
		return page.Image, nil
	}
	tracker.emit(Event{Stage: StageComposited, Page: pageNum})
	log.Debug("page composited",
		logger.Int("regions", len(regions)),
		logger.Int("failed", failed))
	return img, nil
}

func (p *Pipeline) extract(ctx context.Context, img image.Image) ([]vision.Region, error) {
	ctx, cancel := withTimeout(ctx, p.opts.ExtractTimeout)
	defer cancel()

	regions, err := p.extractor.Extract(ctx, img)
	if err != nil && !types.HasCode(err, types.ErrExtraction) {
		err = types.NewAppError(types.ErrExtraction, "region extraction failed", err)
	}
	return regions, err
}

// translateRegions fills TranslatedText in place and returns the number of
// regions that kept their source text.
func (p *Pipeline) translateRegions(ctx context.Context, regions []vision.Region) (int, error) {
	ok := make([]bool, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.RegionConcurrency)
	for i := range regions {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := p.translate(gctx, regions[i].SourceText)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Debug("region translation failed",
					logger.Int("region", i),
					logger.Err(err))
				return nil
			}
			regions[i].TranslatedText = &text
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	failed := 0
	for _, done := range ok {
		if !done {
			failed++
		}
	}
	return failed, nil
}

func (p *Pipeline) translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.opts.TranslateTimeout)
	defer cancel()

	out, err := p.translator.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", types.NewAppError(types.ErrTranslation, "empty translation", nil)
	}
	return out, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// writeIntermediates saves composited pages as PNG. Failures are logged only.
func (p *Pipeline) writeIntermediates(dir, name string, pages []CompositedPage) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("failed to create intermediate directory", logger.String("dir", dir), logger.Err(err))
		return
	}
	for _, page := range pages {
		path := filepath.Join(dir, IntermediateName(name, page.Index))
		if err := writePNG(path, page.Image); err != nil {
			logger.Warn("failed to write intermediate page",
				logger.String("path", path),
				logger.Err(err))
		}
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
