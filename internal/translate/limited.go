package translate

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedTranslator struct {
	limiter    *rate.Limiter
	translator Translator
}

// NewLimited wraps t so calls are paced by l. A nil limiter disables pacing.
func NewLimited(l *rate.Limiter, t Translator) Translator {
	if l == nil {
		return t
	}
	return &limitedTranslator{limiter: l, translator: t}
}

func (t *limitedTranslator) Translate(ctx context.Context, text string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.translator.Translate(ctx, text)
}
