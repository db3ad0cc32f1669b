package translate

import (
	"context"
	"time"

	"pdf-translator/internal/llm"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultMaxAttempts is the default number of attempts per text
	DefaultMaxAttempts = 3
	// BaseRetryDelay is the base delay between retries (exponential backoff)
	BaseRetryDelay = 2 * time.Second
	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay = 30 * time.Second
)

// RetryOptions configures a Retrying translator. Zero values use the
// defaults above.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Timeout bounds each attempt; zero leaves attempts unbounded
	Timeout time.Duration
	// Retryable decides whether an error is worth another attempt
	Retryable func(error) bool
}

// Retrying retries a translator with exponential backoff
type Retrying struct {
	next Translator
	opts RetryOptions
}

// NewRetrying wraps next with bounded retries
func NewRetrying(next Translator, opts RetryOptions) *Retrying {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = BaseRetryDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = MaxRetryDelay
	}
	if opts.Retryable == nil {
		opts.Retryable = llm.IsRetryable
	}
	return &Retrying{next: next, opts: opts}
}

// Translate implements Translator. Persistent failure is reported as
// ErrTranslation wrapping the last error; cancellation of ctx is returned
// as ctx.Err().
func (r *Retrying) Translate(ctx context.Context, text string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		out, err := r.attempt(ctx, text)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		logger.Debug("translation attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", r.opts.MaxAttempts),
			logger.Err(err))

		if !r.opts.Retryable(err) {
			break
		}

		// Don't sleep after the last attempt
		if attempt < r.opts.MaxAttempts {
			delay := backoffDelay(r.opts.BaseDelay, r.opts.MaxDelay, attempt)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			}
		}
	}

	return "", types.NewAppError(types.ErrTranslation, "translation failed", lastErr)
}

func (r *Retrying) attempt(ctx context.Context, text string) (string, error) {
	if r.opts.Timeout <= 0 {
		return r.next.Translate(ctx, text)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.next.Translate(attemptCtx, text)
}

// backoffDelay doubles with each attempt: base, 2*base, 4*base ... capped
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay
}
