// Package wirecodec implements the wire codec (component C): a bypass
// codec that lets handlers own their own serialization — a JSON envelope
// plus a tensor sub-encoding — instead of handing the gRPC transport a
// protobuf-shaped message (spec.md §4.C).
package wirecodec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/Ifihan/blazerpc/internal/semtype"
)

// DecodeRequest parses a JSON request envelope into a map of parameter
// name to decoded value, shaped per each parameter's SemanticType. A key
// absent from the envelope is simply absent from the returned map — the
// handler (or its caller) decides whether that is an error. Unknown keys
// in the envelope are ignored.
func DecodeRequest(data []byte, inputs []semtype.Param) (map[string]any, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, serErr("decode_request", "malformed JSON request envelope", err)
	}
	// Envelope keys are matched against each parameter's declared name
	// ignoring case and underscores: callers writing the envelope by hand
	// (spec.md §4.C's whole point is to not require generated stubs)
	// naturally use the lower/snake-case spelling from the handler's source
	// parameter list, while Go's reflected Param.Name is the exported struct
	// field's PascalCase spelling.
	folded := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		folded[strings.ToLower(strings.ReplaceAll(k, "_", ""))] = v
	}
	out := make(map[string]any, len(inputs))
	for _, p := range inputs {
		raw, ok := folded[strings.ToLower(strings.ReplaceAll(p.Name, "_", ""))]
		if !ok {
			continue
		}
		v, err := decodeValue(raw, p.Type)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

// EncodeResponse renders a handler's return value as a `{"result": ...}`
// envelope (spec.md §4.C). hasOutput=false (an Unknown output type) encodes
// result as JSON null.
func EncodeResponse(result any, output semtype.SemanticType, hasOutput bool) ([]byte, error) {
	if !hasOutput {
		out, err := json.Marshal(map[string]any{"result": nil})
		if err != nil {
			return nil, serErr("encode_response", "failed to marshal response envelope", err)
		}
		return out, nil
	}
	encoded, err := encodeValue(result, output)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(map[string]any{"result": encoded})
	if err != nil {
		return nil, serErr("encode_response", "failed to marshal response envelope", err)
	}
	return out, nil
}

func decodeValue(raw json.RawMessage, t semtype.SemanticType) (any, error) {
	switch t.Kind {
	case semtype.KindScalar:
		return decodeScalar(raw, t.Scalar)
	case semtype.KindList:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, serErr("decode_request", "expected a JSON array for a list value", err)
		}
		out := make([]any, len(elems))
		for i, el := range elems {
			v, err := decodeValue(el, *t.Elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case semtype.KindTensor:
		tensor, err := DecodeTensor(raw)
		if err != nil {
			return nil, err
		}
		return tensor, nil
	default: // Opaque, Unknown
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, serErr("decode_request", "malformed opaque value", err)
		}
		return v, nil
	}
}

func decodeScalar(raw json.RawMessage, kind semtype.ScalarKind) (any, error) {
	switch kind {
	case semtype.ScalarInt64:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, serErr("decode_request", "expected a JSON integer", err)
		}
		return n, nil
	case semtype.ScalarFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, serErr("decode_request", "expected a JSON number", err)
		}
		return float32(f), nil
	case semtype.ScalarDouble:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, serErr("decode_request", "expected a JSON number", err)
		}
		return f, nil
	case semtype.ScalarBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, serErr("decode_request", "expected a JSON boolean", err)
		}
		return b, nil
	case semtype.ScalarString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, serErr("decode_request", "expected a JSON string", err)
		}
		return s, nil
	case semtype.ScalarBytes:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, serErr("decode_request", "expected a base64 JSON string", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, serErr("decode_request", "expected base64-encoded bytes", err)
		}
		return b, nil
	default:
		return nil, serErr("decode_request", fmt.Sprintf("unrecognized scalar kind %v", kind), nil)
	}
}

func encodeValue(v any, t semtype.SemanticType) (any, error) {
	switch t.Kind {
	case semtype.KindScalar:
		return encodeScalar(v, t.Scalar)
	case semtype.KindList:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return []any{}, nil
		}
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, serErr("encode_response", fmt.Sprintf("expected a list-typed value, got %T", v), nil)
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := encodeValue(rv.Index(i).Interface(), *t.Elem)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case semtype.KindTensor:
		tensor, err := asTensor(v)
		if err != nil {
			return nil, err
		}
		raw, err := EncodeTensor(tensor)
		if err != nil {
			return nil, err
		}
		return raw, nil
	default: // Opaque, Unknown
		return v, nil
	}
}

func asTensor(v any) (semtype.Tensor, error) {
	switch t := v.(type) {
	case semtype.Tensor:
		return t, nil
	case *semtype.Tensor:
		return *t, nil
	default:
		return semtype.Tensor{}, serErr("encode_response", fmt.Sprintf("tensor-typed result is not a recognizable tensor (got %T)", v), nil)
	}
}

func encodeScalar(v any, kind semtype.ScalarKind) (any, error) {
	switch kind {
	case semtype.ScalarBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, serErr("encode_response", fmt.Sprintf("expected []byte, got %T", v), nil)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case semtype.ScalarInt64:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || !rv.CanInt() && !rv.CanUint() {
			return nil, serErr("encode_response", fmt.Sprintf("expected an integer, got %T", v), nil)
		}
		if rv.CanInt() {
			return rv.Int(), nil
		}
		return int64(rv.Uint()), nil
	case semtype.ScalarFloat, semtype.ScalarDouble:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || !rv.CanFloat() {
			return nil, serErr("encode_response", fmt.Sprintf("expected a floating-point value, got %T", v), nil)
		}
		return rv.Float(), nil
	case semtype.ScalarBool:
		b, ok := v.(bool)
		if !ok {
			return nil, serErr("encode_response", fmt.Sprintf("expected bool, got %T", v), nil)
		}
		return b, nil
	case semtype.ScalarString:
		s, ok := v.(string)
		if !ok {
			return nil, serErr("encode_response", fmt.Sprintf("expected string, got %T", v), nil)
		}
		return s, nil
	default:
		return nil, serErr("encode_response", fmt.Sprintf("unrecognized scalar kind %v", kind), nil)
	}
}
