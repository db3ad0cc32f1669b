package tesseract

import "context"

type callResult[T any] struct {
	value T
	err   error
}

// withContext runs fn on its own goroutine and returns when fn finishes or
// ctx is done, whichever comes first. fn keeps running after an early return;
// it must release its own resources.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn()
		done <- callResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
