// Package dispatch implements the dispatcher (component E): it turns a
// registry snapshot into a single dynamic grpc.ServiceDesc, wiring each
// model's unary RPC through its batcher and each streaming RPC directly
// to its handler, the way the teacher's reflection-driven servers build a
// grpc.ServiceDesc from a protoreflect.ServiceDescriptor instead of from
// protoc-generated stubs (spec.md §4.E).
package dispatch

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/Ifihan/blazerpc/internal/batch"
	"github.com/Ifihan/blazerpc/internal/events"
	"github.com/Ifihan/blazerpc/internal/eventbus"
	"github.com/Ifihan/blazerpc/internal/naming"
	"github.com/Ifihan/blazerpc/internal/registry"
	"github.com/Ifihan/blazerpc/internal/reqid"
	"github.com/Ifihan/blazerpc/internal/wirecodec"
)

// ServiceName is the fully-qualified gRPC service name every generated RPC
// is mounted under, matching internal/idl's InferenceService.
const ServiceName = "blazerpc.InferenceService"

// Table owns one Batcher per non-streaming model and builds the
// grpc.ServiceDesc that dispatches incoming RPCs to them.
type Table struct {
	models   []*registry.ModelDescriptor
	batchers map[registry.Key]*batch.Batcher
}

// BuildTable constructs a Table from a frozen registry snapshot. Every
// non-streaming model gets its own Batcher, configured with the same
// maxBatchSize/batchTimeout/queueCapacity (spec.md §4.D); per-model
// overrides are not supported.
func BuildTable(reg *registry.Registry, maxBatchSize int, batchTimeout time.Duration, queueCapacity int) *Table {
	models := reg.List()
	t := &Table{
		models:   models,
		batchers: make(map[registry.Key]*batch.Batcher, len(models)),
	}
	for _, m := range models {
		if m.Streaming {
			continue
		}
		t.batchers[m.Key()] = batch.New(m.Name, m.Version, maxBatchSize, batchTimeout, queueCapacity, makeAdapter(m))
	}
	return t
}

// Start starts every model's batcher.
func (t *Table) Start() {
	for _, b := range t.batchers {
		b.Start()
	}
}

// Stop stops every model's batcher, draining their queues.
func (t *Table) Stop() {
	for _, b := range t.batchers {
		b.Stop()
	}
}

// ServiceDesc builds the dynamic grpc.ServiceDesc describing every
// registered model's RPC. HandlerType is left nil, which — paired with
// registering the descriptor against a nil service implementation — tells
// grpc-go to skip the interface assertion it normally performs for
// statically generated services.
func (t *Table) ServiceDesc() *grpc.ServiceDesc {
	sd := &grpc.ServiceDesc{ServiceName: ServiceName}
	for _, m := range t.models {
		m := m
		methodName := "Predict" + naming.Pascal(m.Name)
		if m.Streaming {
			sd.Streams = append(sd.Streams, grpc.StreamDesc{
				StreamName:    methodName,
				Handler:       t.streamHandler(m),
				ServerStreams: true,
			})
			continue
		}
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: methodName,
			Handler:    t.unaryHandler(m),
		})
	}
	return sd
}

func (t *Table) unaryHandler(m *registry.ModelDescriptor) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/Predict" + naming.Pascal(m.Name)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		var raw []byte
		if err := dec(&raw); err != nil {
			return nil, toStatus(err)
		}

		handle := func(ctx context.Context, req any) (any, error) {
			return t.invokeUnary(ctx, m, req.([]byte))
		}
		if interceptor == nil {
			return handle(ctx, raw)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, raw, info, handle)
	}
}

func (t *Table) invokeUnary(ctx context.Context, m *registry.ModelDescriptor, raw []byte) ([]byte, error) {
	methodName := "Predict" + naming.Pascal(m.Name)
	ctx, rid := reqid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.RequestStart{RequestID: rid, Model: m.Name, Version: m.Version, Method: methodName, At: start})

	var outcomeErr error
	defer func() {
		eventbus.Publish(context.Background(), events.RequestFinish{
			RequestID: rid, Model: m.Name, Version: m.Version, Method: methodName,
			Err: outcomeErr, Duration: time.Since(start), At: time.Now(),
		})
	}()

	values, err := wirecodec.DecodeRequest(raw, m.Inputs)
	if err != nil {
		outcomeErr = err
		return nil, toStatus(err)
	}

	b := t.batchers[m.Key()]
	result, err := b.Submit(ctx, values)
	if err != nil {
		outcomeErr = err
		eventbus.Publish(context.Background(), events.InferenceFailed{Model: m.Name, Version: m.Version, Err: err, At: time.Now()})
		return nil, toStatus(err)
	}

	resp, err := wirecodec.EncodeResponse(result, m.Output, m.HasOutput)
	if err != nil {
		outcomeErr = err
		return nil, toStatus(err)
	}
	return resp, nil
}

func (t *Table) streamHandler(m *registry.ModelDescriptor) func(srv any, stream grpc.ServerStream) error {
	methodName := "Predict" + naming.Pascal(m.Name)
	return func(srv any, stream grpc.ServerStream) error {
		var raw []byte
		if err := stream.RecvMsg(&raw); err != nil {
			return err
		}

		ctx, rid := reqid.NewContext(stream.Context())
		start := time.Now()
		eventbus.Publish(ctx, events.RequestStart{RequestID: rid, Model: m.Name, Version: m.Version, Method: methodName, At: start})

		finish := func(err error) error {
			eventbus.Publish(context.Background(), events.RequestFinish{
				RequestID: rid, Model: m.Name, Version: m.Version, Method: methodName,
				Err: err, Duration: time.Since(start), At: time.Now(),
			})
			if err != nil {
				return toStatus(err)
			}
			return nil
		}

		values, err := wirecodec.DecodeRequest(raw, m.Inputs)
		if err != nil {
			return finish(err)
		}

		send := func(out any) error {
			encoded, err := wirecodec.EncodeResponse(out, m.Output, m.HasOutput)
			if err != nil {
				return err
			}
			return stream.SendMsg(&encoded)
		}

		err = invokeStreamHandler(ctx, m, values, send)
		return finish(wrapInferenceError(m.Name, err))
	}
}
