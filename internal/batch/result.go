package batch

import (
	"context"
	"sync"
)

// Result is a SingleUseResult (spec.md §3, GLOSSARY): a write-once,
// read-once carrier for a pending request's outcome. Completing it more
// than once is defensively ignored, per spec.md §3 and §4.D ("already-
// completed items are skipped").
type Result struct {
	mu    sync.Mutex
	done  bool
	ready chan struct{}
	value any
	err   error
}

// NewResult returns a pending Result.
func NewResult() *Result {
	return &Result{ready: make(chan struct{})}
}

// Complete delivers value or err as the result's outcome. Only the first
// call has any effect; subsequent calls are silently ignored, which is
// what makes concurrent cancellation and batch completion safe to race
// against each other (spec.md §5 "Cancellation").
func (r *Result) Complete(value any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.value, r.err = value, err
	close(r.ready)
}

// Done reports whether Complete has already been called.
func (r *Result) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Wait blocks until the result is completed or ctx is done, whichever
// comes first. A context cancellation does not itself complete the
// result — the caller must still observe and, if appropriate, let the
// batcher's own bookkeeping complete it (spec.md §5).
func (r *Result) Wait(ctx context.Context) (any, error) {
	select {
	case <-r.ready:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
