// Package registry implements the model registry (component B): an
// append-only store of ModelDescriptors keyed by (name, version), populated
// during application configuration and frozen once serving begins.
package registry

import (
	"fmt"
	"reflect"

	"github.com/Ifihan/blazerpc/internal/semtype"
)

// HandlerVariant records which of the two Go-native handler shapes a
// descriptor's handler was reflected from. Go's goroutine-per-call model
// collapses the source framework's four variants (unary-sync, unary-async,
// stream-sync-iterator, stream-async-iterator) into two observable shapes.
type HandlerVariant int

const (
	VariantUnary HandlerVariant = iota
	VariantStream
)

// Key identifies a model by its (name, version) pair.
type Key struct {
	Name    string
	Version string
}

func (k Key) String() string {
	return k.Name + "@" + k.Version
}

// ModelDescriptor is the immutable-after-registration record for one
// registered handler (spec.md §3).
type ModelDescriptor struct {
	Name      string
	Version   string
	Handler   any
	Variant   HandlerVariant
	Streaming bool
	Inputs    []semtype.Param
	Output    semtype.SemanticType
	HasOutput bool

	// InStructType is the Go struct type fresh argument values are built
	// from per invocation (reflect.New(InStructType)).
	InStructType reflect.Type
	// OutType is the handler's declared Go return type, or nil when
	// HasOutput is false.
	OutType reflect.Type

	// VectorizedHandler, if non-nil, is a
	// func(context.Context, []*In) ([]Out, error) the batcher calls once
	// per batch instead of fanning out per item (SPEC_FULL.md §5; set by
	// WithVectorizedHandler, invoked by internal/dispatch's batch adapter).
	VectorizedHandler any
}

// Key returns the descriptor's (name, version) registry key.
func (d *ModelDescriptor) Key() Key {
	return Key{Name: d.Name, Version: d.Version}
}

// NotFoundError is returned by Get for a missing (name, version) pair.
type NotFoundError struct {
	Key Key
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: model %q not found", e.Key)
}

// ValidationError is returned by Register when a descriptor fails the
// type reflector's contract (spec.md §4.A: "registration fails ... if
// inputs is empty") or disagrees on the streaming flag (spec.md §3:
// "streaming ... must agree with the handler variant").
type ValidationError struct {
	Name    string
	Version string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry: invalid registration for %s@%s: %s", e.Name, e.Version, e.Reason)
}

// Registry stores ModelDescriptors keyed by (name, version) while also
// preserving registration order for List. Per spec.md §4.B, it is mutated
// only during single-threaded application configuration; after serving
// begins it is read-only and needs no locking (SPEC_FULL.md carries this
// discipline forward rather than adding defensive locking the spec doesn't
// call for).
type Registry struct {
	order []Key
	byKey map[Key]*ModelDescriptor
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byKey: make(map[Key]*ModelDescriptor)}
}

// RegisterOption customizes a single Register call.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	vectorized any
}

// WithVectorizedHandler opts a non-streaming model into batch
// vectorization (SPEC_FULL.md §5): fn must have the shape
// func(context.Context, []*In) ([]Out, error), where In/Out match the
// scalar handler's input struct and output type. When present, the
// batcher invokes fn once per batch instead of fanning out one call per
// item.
func WithVectorizedHandler(fn any) RegisterOption {
	return func(c *registerConfig) { c.vectorized = fn }
}

// Register reflects handler's signature, validates it, and inserts (or, on
// duplicate (name,version), overwrites — the spec permits either; this
// implementation overwrites, matching the observed source behavior, see
// DESIGN.md Open Questions) a new ModelDescriptor. version defaults to "1"
// when empty.
func (r *Registry) Register(name, version string, handler any, streaming bool, opts ...RegisterOption) (*ModelDescriptor, error) {
	if name == "" {
		return nil, &ValidationError{Name: name, Version: version, Reason: "name must not be empty"}
	}
	if version == "" {
		version = "1"
	}

	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	info, err := semtype.ReflectHandler(handler)
	if err != nil {
		return nil, &ValidationError{Name: name, Version: version, Reason: err.Error()}
	}
	if len(info.Inputs) == 0 {
		return nil, &ValidationError{Name: name, Version: version, Reason: "handler declares no inputs"}
	}
	if info.Streaming != streaming {
		return nil, &ValidationError{Name: name, Version: version, Reason: fmt.Sprintf("streaming=%v does not match handler variant (streaming=%v)", streaming, info.Streaming)}
	}
	if cfg.vectorized != nil && info.Streaming {
		return nil, &ValidationError{Name: name, Version: version, Reason: "a streaming model cannot declare a vectorized batch handler"}
	}
	if cfg.vectorized != nil {
		if err := validateVectorizedHandler(cfg.vectorized, info.InStructType, info.OutType); err != nil {
			return nil, &ValidationError{Name: name, Version: version, Reason: err.Error()}
		}
	}

	variant := VariantUnary
	if info.Streaming {
		variant = VariantStream
	}

	desc := &ModelDescriptor{
		Name:              name,
		Version:           version,
		Handler:           handler,
		Variant:           variant,
		Streaming:         streaming,
		Inputs:            info.Inputs,
		Output:            info.Output,
		HasOutput:         info.HasOutput,
		InStructType:      info.InStructType,
		OutType:           info.OutType,
		VectorizedHandler: cfg.vectorized,
	}

	key := desc.Key()
	if _, exists := r.byKey[key]; !exists {
		r.order = append(r.order, key)
	}
	r.byKey[key] = desc
	return desc, nil
}

func validateVectorizedHandler(fn any, inStructType, outType reflect.Type) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("vectorized handler must be a function")
	}
	if t.NumIn() != 2 || t.NumOut() != 2 {
		return fmt.Errorf("vectorized handler must have the shape func(context.Context, []*In) ([]Out, error)")
	}
	inSlice := t.In(1)
	if inSlice.Kind() != reflect.Slice {
		return fmt.Errorf("vectorized handler's second parameter must be a slice")
	}
	elem := inSlice.Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if inStructType != nil && elem != inStructType {
		return fmt.Errorf("vectorized handler's request slice element must match the scalar handler's input type %s", inStructType)
	}
	outSlice := t.Out(0)
	if outSlice.Kind() != reflect.Slice {
		return fmt.Errorf("vectorized handler's first return value must be a slice")
	}
	if outType != nil && outSlice.Elem() != outType {
		return fmt.Errorf("vectorized handler's result slice element must match the scalar handler's output type %s", outType)
	}
	if !t.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		return fmt.Errorf("vectorized handler's second return value must be error")
	}
	return nil
}

// Get returns the descriptor for (name, version), or a *NotFoundError.
func (r *Registry) Get(name, version string) (*ModelDescriptor, error) {
	if version == "" {
		version = "1"
	}
	key := Key{Name: name, Version: version}
	desc, ok := r.byKey[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	return desc, nil
}

// List returns a snapshot of every registered descriptor, in registration
// order. Duplicate (name, version) registrations appear once, at the
// position of their first registration.
func (r *Registry) List() []*ModelDescriptor {
	out := make([]*ModelDescriptor, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	return out
}

// Len reports the number of distinct (name, version) pairs registered.
func (r *Registry) Len() int {
	return len(r.order)
}
