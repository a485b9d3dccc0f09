package dispatch

import (
	"context"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/Ifihan/blazerpc/internal/batch"
	"github.com/Ifihan/blazerpc/internal/registry"
	"github.com/Ifihan/blazerpc/internal/wirecodec"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// makeAdapter builds the per-model batch.Adapter the batcher calls once
// per collected batch (spec.md §4.D/§4.E). A model opted into batch
// vectorization (registry.WithVectorizedHandler) gets one call to its
// vectorized handler; otherwise the batch fans out one handler call per
// item, concurrently, via errgroup — spec.md §4.E's "offload a sync
// handler call so it doesn't block the loop."
func makeAdapter(m *registry.ModelDescriptor) batch.Adapter {
	return func(ctx context.Context, requests []map[string]any) ([]batch.Outcome, error) {
		if m.VectorizedHandler != nil {
			return invokeVectorized(ctx, m, requests)
		}
		return invokeFanOut(ctx, m, requests)
	}
}

func invokeFanOut(ctx context.Context, m *registry.ModelDescriptor, requests []map[string]any) ([]batch.Outcome, error) {
	outcomes := make([]batch.Outcome, len(requests))
	var g errgroup.Group
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			out, err := invokeUnaryHandler(ctx, m, req)
			if err != nil {
				outcomes[i] = batch.Outcome{Err: wrapInferenceError(m.Name, err)}
			} else {
				outcomes[i] = batch.Outcome{Value: out}
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

func invokeVectorized(ctx context.Context, m *registry.ModelDescriptor, requests []map[string]any) ([]batch.Outcome, error) {
	argsSlice := reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(m.InStructType)), len(requests), len(requests))
	for i, req := range requests {
		ptr := reflect.New(m.InStructType)
		if err := wirecodec.AssignInto(ptr.Elem(), m.Inputs, req); err != nil {
			return nil, err
		}
		argsSlice.Index(i).Set(ptr)
	}

	fn := reflect.ValueOf(m.VectorizedHandler)
	results := fn.Call([]reflect.Value{reflect.ValueOf(ctx), argsSlice})
	if errVal := results[1].Interface(); errVal != nil {
		return nil, wrapInferenceError(m.Name, errVal.(error))
	}

	outSlice := results[0]
	outcomes := make([]batch.Outcome, outSlice.Len())
	for i := range outcomes {
		outcomes[i] = batch.Outcome{Value: outSlice.Index(i).Interface()}
	}
	return outcomes, nil
}

// invokeUnaryHandler builds the handler's input struct from req, calls its
// unary handler via reflection, and returns its declared result.
func invokeUnaryHandler(ctx context.Context, m *registry.ModelDescriptor, req map[string]any) (any, error) {
	argPtr := reflect.New(m.InStructType)
	if err := wirecodec.AssignInto(argPtr.Elem(), m.Inputs, req); err != nil {
		return nil, err
	}
	fn := reflect.ValueOf(m.Handler)
	results := fn.Call([]reflect.Value{reflect.ValueOf(ctx), argPtr})
	if errVal := results[1].Interface(); errVal != nil {
		return nil, errVal.(error)
	}
	return results[0].Interface(), nil
}

// makeYield builds a reflect.Value implementing the streaming handler's
// third parameter (func(Out) error), forwarding each yielded value to
// send.
func makeYield(handler any, send func(any) error) reflect.Value {
	yieldType := reflect.TypeOf(handler).In(2)
	return reflect.MakeFunc(yieldType, func(args []reflect.Value) []reflect.Value {
		err := send(args[0].Interface())
		if err != nil {
			return []reflect.Value{reflect.ValueOf(err)}
		}
		return []reflect.Value{reflect.Zero(errType)}
	})
}

// invokeStreamHandler builds the handler's input struct from req, calls
// its streaming handler via reflection, forwarding every yielded value to
// send, and returns the handler's final error.
func invokeStreamHandler(ctx context.Context, m *registry.ModelDescriptor, req map[string]any, send func(any) error) error {
	argPtr := reflect.New(m.InStructType)
	if err := wirecodec.AssignInto(argPtr.Elem(), m.Inputs, req); err != nil {
		return err
	}
	yield := makeYield(m.Handler, send)
	fn := reflect.ValueOf(m.Handler)
	results := fn.Call([]reflect.Value{reflect.ValueOf(ctx), argPtr, yield})
	if errVal := results[0].Interface(); errVal != nil {
		return errVal.(error)
	}
	return nil
}
