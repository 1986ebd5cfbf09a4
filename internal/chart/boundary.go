package chart

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Boundary contains chart failures. Once a guarded call fails the boundary
// stays failed, and further guarded calls are skipped, until Reset.
type Boundary struct {
	mu       sync.Mutex
	err      error
	failures int
	logger   *zap.Logger
}

// NewBoundary creates a Boundary. A nil logger discards failures.
func NewBoundary(logger *zap.Logger) *Boundary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Boundary{logger: logger}
}

// Guard runs fn, converting a panic into an error. A failure is recorded and
// returned. When the boundary has already failed, fn is not run and the
// recorded error is returned.
func (b *Boundary) Guard(fn func() error) (err error) {
	b.mu.Lock()
	if b.err != nil {
		err = b.err
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chart panic: %v", r)
		}
		if err != nil {
			b.mu.Lock()
			b.err = err
			b.failures++
			b.mu.Unlock()
			b.logger.Warn("chart failed", zap.Error(err))
		}
	}()

	return fn()
}

// Failed reports whether the boundary holds a failure.
func (b *Boundary) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err != nil
}

// Err returns the recorded failure.
func (b *Boundary) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Failures counts failures since creation.
func (b *Boundary) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset clears the failure so the next Guard runs again.
func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
}
