package dispatch

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Ifihan/blazerpc/internal/batch"
	"github.com/Ifihan/blazerpc/internal/wirecodec"
)

// InferenceError reports a handler exception, whether raised by a
// streaming handler, by a unary handler fanned out through the batcher
// (surfacing as a per-item batch outcome), or by a vectorized batch handler (spec.md §7: "InferenceError(cause, model_name)
// — any exception raised inside the handler ... surfaces to client as
// INTERNAL with a message including the model name and the underlying
// message"). Cancellation is never wrapped in an InferenceError — it is
// reported as Cancelled instead, see toStatus.
type InferenceError struct {
	ModelName string
	Cause     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference error: model %q: %v", e.ModelName, e.Cause)
}

func (e *InferenceError) Unwrap() error { return e.Cause }

// wrapInferenceError leaves cancellation and already-classified errors
// (SerializationError, another InferenceError) untouched and wraps
// anything else raised by modelName's handler.
func wrapInferenceError(modelName string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var inferErr *InferenceError
	if errors.As(err, &inferErr) {
		return err
	}
	var serErr *wirecodec.SerializationError
	if errors.As(err, &serErr) {
		return err
	}
	return &InferenceError{ModelName: modelName, Cause: err}
}

// toStatus maps the internal error taxonomy (spec.md §6) onto gRPC status
// codes: cancellation passes through as Canceled/DeadlineExceeded,
// malformed envelopes become InvalidArgument, a stopped batcher is
// reported as Canceled, and anything else — including a handler's own error — is
// reported as Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, batch.ErrStopped):
		return status.Error(codes.Canceled, err.Error())
	}

	var serErr *wirecodec.SerializationError
	if errors.As(err, &serErr) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
