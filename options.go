package blazerpc

import "time"

// ServeOptions configures App.Serve. The zero value is never used
// directly; construct defaults with defaultServeOptions and apply
// ServeOption values over it.
type ServeOptions struct {
	host string
	port int

	maxBatchSize  int
	batchTimeout  time.Duration
	queueCapacity int

	gracePeriod time.Duration

	otlpEndpoint    string
	otlpServiceName string
}

func defaultServeOptions() ServeOptions {
	return ServeOptions{
		host:            "0.0.0.0",
		port:            50051,
		maxBatchSize:    8,
		batchTimeout:    10 * time.Millisecond,
		queueCapacity:   256,
		gracePeriod:     10 * time.Second,
		otlpServiceName: "blazerpc",
	}
}

// ServeOption customizes a single Serve call.
type ServeOption func(*ServeOptions)

// WithHost sets the listen address's host (default "0.0.0.0").
func WithHost(host string) ServeOption {
	return func(o *ServeOptions) { o.host = host }
}

// WithPort sets the listen address's port (default 50051).
func WithPort(port int) ServeOption {
	return func(o *ServeOptions) { o.port = port }
}

// WithMaxBatchSize bounds every model's batcher (spec.md §4.D); default 8.
func WithMaxBatchSize(n int) ServeOption {
	return func(o *ServeOptions) { o.maxBatchSize = n }
}

// WithBatchTimeout bounds how long a batch waits to fill before dispatch
// (spec.md §4.D); default 10ms.
func WithBatchTimeout(d time.Duration) ServeOption {
	return func(o *ServeOptions) { o.batchTimeout = d }
}

// WithQueueCapacity bounds how many submitted-but-uncollected requests may
// be outstanding per model before Submit blocks; default 256.
func WithQueueCapacity(n int) ServeOption {
	return func(o *ServeOptions) { o.queueCapacity = n }
}

// WithGracePeriod bounds how long Serve waits for in-flight RPCs to finish
// after its context is canceled before forcing the listener closed;
// default 10s.
func WithGracePeriod(d time.Duration) ServeOption {
	return func(o *ServeOptions) { o.gracePeriod = d }
}

// WithOTLPEndpoint enables trace export to an OTLP collector at endpoint
// (SPEC_FULL.md §4's tracing component). Empty (the default) leaves
// tracing unconfigured.
func WithOTLPEndpoint(endpoint string) ServeOption {
	return func(o *ServeOptions) { o.otlpEndpoint = endpoint }
}

// WithOTLPServiceName sets the service.name resource attribute traces are
// exported under (default "blazerpc").
func WithOTLPServiceName(name string) ServeOption {
	return func(o *ServeOptions) { o.otlpServiceName = name }
}
