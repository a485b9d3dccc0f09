// Package otelobs wires OpenTelemetry tracing into blazerpc by subscribing
// to internal/events over internal/eventbus, the same shape the teacher's
// internal/otel package used to bridge GraphQL lifecycle events into spans
// (SPEC_FULL.md §3, §4).
package otelobs

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ifihan/blazerpc/internal/events"
	"github.com/Ifihan/blazerpc/internal/eventbus"
)

const tracerName = "github.com/Ifihan/blazerpc"

// Setup builds an OTLP-over-gRPC trace exporter and tracer provider for
// serviceName, registers it as the global tracer provider, and subscribes
// the lifecycle event handlers that turn internal/events into spans. The
// returned shutdown func flushes and stops the exporter; callers must call
// it during server shutdown.
func Setup(ctx context.Context, bus *eventbus.Bus, otlpEndpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	if otlpEndpoint != "" {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithEndpoint(otlpEndpoint))
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)

	sub := newSubscriber(bus, tp.Tracer(tracerName))
	unsubs := sub.install()

	return func(shutdownCtx context.Context) error {
		for _, unsub := range unsubs {
			unsub()
		}
		return tp.Shutdown(shutdownCtx)
	}, nil
}

type subscriber struct {
	bus    *eventbus.Bus
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

func newSubscriber(bus *eventbus.Bus, tracer trace.Tracer) *subscriber {
	return &subscriber{bus: bus, tracer: tracer, spans: make(map[string]trace.Span)}
}

func (s *subscriber) install() []func() {
	eventbus.Use(s.bus)
	return []func(){
		eventbus.Subscribe(s.onRequestStart),
		eventbus.Subscribe(s.onRequestFinish),
		eventbus.Subscribe(s.onBatchDispatched),
	}
}

func (s *subscriber) onRequestStart(ctx context.Context, e events.RequestStart) {
	_, span := s.tracer.Start(ctx, e.Method,
		trace.WithAttributes(
			attribute.String("blazerpc.model", e.Model),
			attribute.String("blazerpc.version", e.Version),
			attribute.String("blazerpc.request_id", e.RequestID),
		),
	)
	s.mu.Lock()
	s.spans[e.RequestID] = span
	s.mu.Unlock()
}

func (s *subscriber) onRequestFinish(ctx context.Context, e events.RequestFinish) {
	s.mu.Lock()
	span, ok := s.spans[e.RequestID]
	if ok {
		delete(s.spans, e.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Int64("blazerpc.duration_ms", e.Duration.Milliseconds()))
	span.End()
}

func (s *subscriber) onBatchDispatched(ctx context.Context, e events.BatchDispatched) {
	_, span := s.tracer.Start(ctx, "BatchDispatch",
		trace.WithAttributes(
			attribute.String("blazerpc.model", e.Model),
			attribute.String("blazerpc.version", e.Version),
			attribute.Int("blazerpc.batch_size", e.Size),
			attribute.Int64("blazerpc.wait_ms", e.WaitTime.Milliseconds()),
		),
		trace.WithTimestamp(e.At),
	)
	span.End(trace.WithTimestamp(e.At.Add(time.Microsecond)))
}
