package tesseract

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithContextReturnsResult(t *testing.T) {
	got, err := withContext(context.Background(), func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("withContext() = %d, %v; want 42, nil", got, err)
	}

	boom := errors.New("boom")
	if _, err := withContext(context.Background(), func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("withContext() error = %v, want %v", err, boom)
	}
}

func TestWithContextStopsWaitingOnTimeout(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	defer func() {
		close(release)
		<-finished
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := withContext(ctx, func() (int, error) {
		defer close(finished)
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("withContext() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("withContext() returned after %v, want prompt return on timeout", elapsed)
	}
}
