// Package batch implements the adaptive batcher (component D): a per-model
// background loop that coalesces queued unary requests into batches
// bounded by size and timeout, demultiplexing each batch's outcome back to
// its originating caller (spec.md §4.D).
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ifihan/blazerpc/internal/events"
	"github.com/Ifihan/blazerpc/internal/eventbus"
)

// ErrStopped is returned by Submit once the batcher has stopped or is
// stopping (spec.md §4.D: "After stop, new submissions should fail
// promptly with a Cancelled error").
var ErrStopped = errors.New("batch: batcher is not running")

// Item is a BatchItem (spec.md §3): one enqueued request paired with the
// SingleUseResult its caller is waiting on.
type Item struct {
	Request    map[string]any
	Result     *Result
	enqueuedAt time.Time
}

// Outcome is the wrapper type spec.md §9's Open Questions calls for:
// "reimplementers ... should define a wrapper type ItemOutcome = Ok(value)
// | Err(message) and convert at the boundary." A non-nil Err marks a
// per-item failure distinct from a whole-batch failure.
type Outcome struct {
	Value any
	Err   error
}

// Adapter is the per-model inference adapter (spec.md §4.E) the batcher
// dispatches a collected batch to. It must return either an error (every
// item in the batch fails with it) or exactly len(requests) Outcomes, in
// request order.
type Adapter func(ctx context.Context, requests []map[string]any) ([]Outcome, error)

type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

// Batcher owns one model's FIFO request queue and background collection
// loop (spec.md §4.D). The zero value is not usable; construct with New.
type Batcher struct {
	model, version string
	maxBatchSize   int
	timeout        time.Duration
	adapter        Adapter

	queue chan *Item

	mu     sync.Mutex
	st     state
	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Batcher for one model. maxBatchSize and timeout must be
// positive; queueCapacity bounds how many submitted-but-not-yet-pulled
// items may be outstanding before Submit blocks (spec.md §5: "enqueue into
// batcher (may suspend briefly if the queue uses bounded capacity)").
func New(model, version string, maxBatchSize int, timeout time.Duration, queueCapacity int, adapter Adapter) *Batcher {
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	return &Batcher{
		model:        model,
		version:      version,
		maxBatchSize: maxBatchSize,
		timeout:      timeout,
		adapter:      adapter,
		queue:        make(chan *Item, queueCapacity),
		st:           stateStopped,
	}
}

// Start begins the background collection loop. It is idempotent: calling
// Start on an already-running batcher is a no-op (spec.md §4.D "States").
func (b *Batcher) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st != stateStopped {
		return
	}
	b.st = stateRunning
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	go b.loop(b.stopCh, b.doneCh)
}

// Stop cancels the collection loop, waits for it to exit cleanly, and
// completes every item still in the queue with ErrStopped. Idempotent:
// calling Stop on a stopped batcher is a no-op (spec.md §4.D "States").
func (b *Batcher) Stop() {
	b.mu.Lock()
	if b.st != stateRunning {
		b.mu.Unlock()
		return
	}
	b.st = stateStopping
	stopCh, doneCh := b.stopCh, b.doneCh
	b.mu.Unlock()

	close(stopCh)
	<-doneCh

	b.mu.Lock()
	b.st = stateStopped
	b.mu.Unlock()
}

// Submit enqueues a request and blocks until its result is available, ctx
// is done, or the queue is full and never drains before ctx is done.
func (b *Batcher) Submit(ctx context.Context, request map[string]any) (any, error) {
	b.mu.Lock()
	running := b.st == stateRunning
	b.mu.Unlock()
	if !running {
		return nil, ErrStopped
	}

	item := &Item{Request: request, Result: NewResult(), enqueuedAt: time.Now()}
	select {
	case b.queue <- item:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return item.Result.Wait(ctx)
}

func (b *Batcher) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer b.drainQueue()

	for {
		// A requested stop takes precedence over items still queued, so
		// drainQueue completes them with ErrStopped instead of dispatching.
		select {
		case <-stopCh:
			return
		default:
		}
		select {
		case <-stopCh:
			return
		case first := <-b.queue:
			batch := b.collect(first, stopCh)
			b.dispatch(batch)
		}
	}
}

// collect implements spec.md §4.D's collection algorithm: accept further
// items while len(batch) < max_batch_size and now < deadline, where
// deadline is computed once the first item of the batch is pulled.
func (b *Batcher) collect(first *Item, stopCh chan struct{}) []*Item {
	batch := []*Item{first}
	deadline := time.Now().Add(b.timeout)

	for len(batch) < b.maxBatchSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return batch
		}
		timer := time.NewTimer(remaining)
		select {
		case item := <-b.queue:
			timer.Stop()
			batch = append(batch, item)
		case <-timer.C:
			return batch
		case <-stopCh:
			timer.Stop()
			return batch
		}
	}
	return batch
}

func (b *Batcher) dispatch(batch []*Item) {
	waitTime := time.Since(batch[0].enqueuedAt)
	eventbus.Publish(context.Background(), events.BatchDispatched{
		Model: b.model, Version: b.version, Size: len(batch), WaitTime: waitTime, At: time.Now(),
	})

	requests := make([]map[string]any, len(batch))
	for i, item := range batch {
		requests[i] = item.Request
	}

	outcomes, err := b.adapter(context.Background(), requests)
	if err != nil {
		for _, item := range batch {
			item.Result.Complete(nil, err)
		}
		return
	}
	if len(outcomes) != len(batch) {
		mismatch := fmt.Errorf("batch: adapter returned %d results for a batch of %d", len(outcomes), len(batch))
		for _, item := range batch {
			item.Result.Complete(nil, mismatch)
		}
		return
	}
	for i, item := range batch {
		o := outcomes[i]
		if o.Err != nil {
			item.Result.Complete(nil, o.Err)
		} else {
			item.Result.Complete(o.Value, nil)
		}
	}
}

func (b *Batcher) drainQueue() {
	for {
		select {
		case item := <-b.queue:
			item.Result.Complete(nil, ErrStopped)
		default:
			return
		}
	}
}
