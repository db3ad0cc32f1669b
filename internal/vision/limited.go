package vision

import (
	"context"
	"image"

	"golang.org/x/time/rate"
)

type limitedExtractor struct {
	limiter   *rate.Limiter
	extractor Extractor
}

// NewLimited wraps e so calls are paced by l. A nil limiter disables pacing.
func NewLimited(l *rate.Limiter, e Extractor) Extractor {
	if l == nil {
		return e
	}
	return &limitedExtractor{limiter: l, extractor: e}
}

func (e *limitedExtractor) Extract(ctx context.Context, img image.Image) ([]Region, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.extractor.Extract(ctx, img)
}
