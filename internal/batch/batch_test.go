package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoAdapter(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
	out := make([]Outcome, len(requests))
	for i, req := range requests {
		out[i] = Outcome{Value: req["text"]}
	}
	return out, nil
}

func TestBatcher_SingleItemDispatchesAfterTimeout(t *testing.T) {
	b := New("echo", "1", 8, 20*time.Millisecond, 16, echoAdapter)
	b.Start()
	defer b.Stop()

	start := time.Now()
	v, err := b.Submit(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBatcher_NeverExceedsMaxBatchSize(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	adapter := func(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
		mu.Lock()
		sizes = append(sizes, len(requests))
		mu.Unlock()
		out := make([]Outcome, len(requests))
		for i := range out {
			out[i] = Outcome{Value: i}
		}
		return out, nil
	}
	b := New("m", "1", 3, 200*time.Millisecond, 16, adapter)
	b.Start()
	defer b.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Submit(context.Background(), map[string]any{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, s := range sizes {
		assert.LessOrEqual(t, s, 3)
		total += s
	}
	assert.Equal(t, 6, total)
}

func TestBatcher_WholeBatchFailure(t *testing.T) {
	boom := errors.New("boom")
	adapter := func(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
		return nil, boom
	}
	b := New("m", "1", 4, 10*time.Millisecond, 16, adapter)
	b.Start()
	defer b.Stop()

	_, err := b.Submit(context.Background(), map[string]any{})
	require.ErrorIs(t, err, boom)
}

func TestBatcher_PerItemErrorIsolatesWaiters(t *testing.T) {
	adapter := func(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
		out := make([]Outcome, len(requests))
		for i := range out {
			if i == 1 {
				out[i] = Outcome{Err: errors.New("item 1 failed")}
			} else {
				out[i] = Outcome{Value: i}
			}
		}
		return out, nil
	}
	b := New("m", "1", 3, 50*time.Millisecond, 16, adapter)
	b.Start()
	defer b.Stop()

	results := make([]any, 3)
	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := b.Submit(context.Background(), map[string]any{"i": i})
			results[i] = v
			errs[i] = err
		}(i)
	}
	wg.Wait()

	errCount := 0
	for _, e := range errs {
		if e != nil {
			errCount++
		}
	}
	assert.Equal(t, 1, errCount)
}

func TestBatcher_LengthMismatchFailsAllWithDescriptiveError(t *testing.T) {
	adapter := func(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
		return []Outcome{{Value: 1}}, nil
	}
	b := New("m", "1", 3, 20*time.Millisecond, 16, adapter)
	b.Start()
	defer b.Stop()

	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Submit(context.Background(), map[string]any{})
			if err != nil {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 3, failures)
}

func TestBatcher_StartIsIdempotent(t *testing.T) {
	b := New("m", "1", 2, 10*time.Millisecond, 4, echoAdapter)
	b.Start()
	b.Start()
	defer b.Stop()
	_, err := b.Submit(context.Background(), map[string]any{"text": "ok"})
	require.NoError(t, err)
}

func TestBatcher_StopIsIdempotentAndDrainsQueue(t *testing.T) {
	blocking := make(chan struct{})
	adapter := func(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
		<-blocking
		out := make([]Outcome, len(requests))
		return out, nil
	}
	b := New("m", "1", 1, time.Second, 4, adapter)
	b.Start()

	// Fill the in-flight batch slot, then queue a second item that will
	// still be sitting in the queue when Stop is called.
	go b.Submit(context.Background(), map[string]any{})
	time.Sleep(10 * time.Millisecond)

	resultCh := make(chan error, 1)
	go func() {
		_, err := b.Submit(context.Background(), map[string]any{})
		resultCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	stopDone := make(chan struct{})
	go func() {
		b.Stop()
		close(stopDone)
	}()
	time.Sleep(10 * time.Millisecond) // let Stop observe stateRunning and close stopCh first
	close(blocking)                   // now unblock the in-flight adapter call
	<-stopDone
	b.Stop() // idempotent

	select {
	case err := <-resultCh:
		require.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("queued item was never completed after Stop")
	}

	_, err := b.Submit(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrStopped)
}

func TestBatcher_SubmitRespectsContextCancellation(t *testing.T) {
	blocking := make(chan struct{})
	adapter := func(ctx context.Context, requests []map[string]any) ([]Outcome, error) {
		<-blocking
		return make([]Outcome, len(requests)), nil
	}
	b := New("m", "1", 1, time.Second, 1, adapter)
	b.Start()
	defer func() { close(blocking); b.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Submit(ctx, map[string]any{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
