// Package blazerpc is a framework for exposing plain Go functions as a
// gRPC inference service: register a handler per model, and the server
// derives its wire types from the handler's own signature, batches
// concurrent unary calls transparently, and can emit the .proto IDL an
// external client would be written against (spec.md OVERVIEW).
package blazerpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Ifihan/blazerpc/internal/dispatch"
	"github.com/Ifihan/blazerpc/internal/events"
	"github.com/Ifihan/blazerpc/internal/eventbus"
	"github.com/Ifihan/blazerpc/internal/idl"
	"github.com/Ifihan/blazerpc/internal/otelobs"
	"github.com/Ifihan/blazerpc/internal/registry"
	"github.com/Ifihan/blazerpc/internal/wirecodec"
)

// RegisterOption customizes a single Register call; see
// WithVectorizedHandler.
type RegisterOption = registry.RegisterOption

// WithVectorizedHandler opts a non-streaming model into batch
// vectorization (SPEC_FULL.md §5): fn must have the shape
// func(context.Context, []*In) ([]Out, error), matching the scalar
// handler's In/Out types. When present, the batcher invokes fn once per
// batch instead of calling the scalar handler once per item.
var WithVectorizedHandler = registry.WithVectorizedHandler

// App is an inference server under construction: a set of registered
// models plus the configuration App.Serve starts them with. The zero
// value is not usable; construct with New.
type App struct {
	reg *registry.Registry
}

// New returns an empty App ready for Register calls.
func New() *App {
	return &App{reg: registry.New()}
}

// Register reflects handler's signature (spec.md §4.A) and adds it to the
// app's model registry (spec.md §4.B). version defaults to "1" when
// empty; streaming must agree with the handler's shape — a unary handler
// (func(ctx, *In) (Out, error)) with streaming or vice versa is rejected.
func (a *App) Register(name, version string, handler any, streaming bool, opts ...RegisterOption) error {
	_, err := a.reg.Register(name, version, handler, streaming, opts...)
	return err
}

// Proto renders the .proto IDL an external gRPC client would be written
// against for every model currently registered (spec.md §4.F).
func (a *App) Proto() (string, error) {
	return idl.Generate(a.reg.List())
}

// Serve starts the gRPC listener and blocks until ctx is canceled or the
// listener fails. On cancellation it flips the health service to
// NOT_SERVING, attempts a graceful stop, and forces the listener closed
// after GracePeriod if in-flight RPCs haven't finished (spec.md §4.E
// "server startup sequence").
func (a *App) Serve(ctx context.Context, opts ...ServeOption) error {
	o := defaultServeOptions()
	for _, opt := range opts {
		opt(&o)
	}

	wirecodec.RegisterBypassCodec()

	bus := eventbus.New()
	eventbus.Use(bus)

	otelShutdown := func(context.Context) error { return nil }
	if o.otlpEndpoint != "" {
		shutdown, err := otelobs.Setup(ctx, bus, o.otlpEndpoint, o.otlpServiceName)
		if err != nil {
			return fmt.Errorf("blazerpc: otel setup: %w", err)
		}
		otelShutdown = shutdown
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	addr := fmt.Sprintf("%s:%d", o.host, o.port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("blazerpc: listen on %s: %w", addr, err)
	}

	table := dispatch.BuildTable(a.reg, o.maxBatchSize, o.batchTimeout, o.queueCapacity)
	table.Start()
	defer table.Stop()

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(table.ServiceDesc(), nil)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(dispatch.ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- grpcServer.Serve(lis) }()
	eventbus.Publish(ctx, events.ServeStart{Addr: lis.Addr().String(), At: time.Now()})

	select {
	case <-ctx.Done():
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthSrv.SetServingStatus(dispatch.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(o.gracePeriod):
			grpcServer.Stop()
		}
		eventbus.Publish(context.Background(), events.ServeFinish{At: time.Now()})
		return nil
	case err := <-serveErrCh:
		eventbus.Publish(context.Background(), events.ServeFinish{At: time.Now()})
		return err
	}
}
