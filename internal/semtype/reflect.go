package semtype

import (
	"context"
	"fmt"
	"reflect"
)

var (
	ctxType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType    = reflect.TypeOf((*error)(nil)).Elem()
	tensorType = reflect.TypeOf(Tensor{})
	byteSlice  = reflect.TypeOf([]byte(nil))
	voidType   = reflect.TypeOf(struct{}{})
)

// Param is one entry of a handler's ordered input list: a parameter name
// (the exported Go field name it was reflected from, or the field's
// non-empty `blazerpc:"..."` tag when present) paired with its classified
// SemanticType.
type Param struct {
	Name string
	Type SemanticType
}

// HandlerInfo is the result of reflecting a registered handler: its ordered
// inputs, its output type (if any), and whether it is a streaming handler.
// This is the Go-native shape of spec.md §4.A's "(inputs, output)" pair, plus
// the streaming flag the registry needs to validate against the caller's
// declared `streaming` argument.
type HandlerInfo struct {
	Inputs    []Param
	Output    SemanticType
	HasOutput bool
	Streaming bool

	// InStructType is the (unwrapped, non-pointer) Go struct type the
	// handler's input parameter was reflected from. Callers use it to
	// reflect.New a fresh args value per invocation.
	InStructType reflect.Type

	// OutType is the handler's declared Go return type: Out(0) for a
	// unary handler, or the yield callback's parameter type for a
	// streaming handler. Nil when HasOutput is false.
	OutType reflect.Type
}

// Classify maps a Go reflect.Type to a SemanticType following the
// precedence order of spec.md §4.A rule 2: explicit tensor marker, then
// ordered sequence (list), then recognized scalar, else opaque. The one
// exception is []byte, which is classified as the bytes scalar rather than
// a list of integers.
func Classify(t reflect.Type) SemanticType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch {
	case t == tensorType:
		return TensorType("", nil, DirectionInput)
	case t == byteSlice:
		return ScalarType(ScalarBytes)
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		return ListType(Classify(t.Elem()))
	case t.Kind() == reflect.String:
		return ScalarType(ScalarString)
	case t.Kind() == reflect.Bool:
		return ScalarType(ScalarBool)
	case t.Kind() == reflect.Float32:
		return ScalarType(ScalarFloat)
	case t.Kind() == reflect.Float64:
		return ScalarType(ScalarDouble)
	case isIntKind(t.Kind()):
		return ScalarType(ScalarInt64)
	default:
		return OpaqueType
	}
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// ReflectHandler introspects a handler value and derives its ordered inputs
// and output type (component A). Two shapes are recognized, mapping the
// source's four callable variants (sync/async unary, sync/async generator)
// onto Go's goroutine-per-call model:
//
//	func(context.Context, *In) (Out, error)                      — unary
//	func(context.Context, *In, func(Out) error) error            — streaming
//
// In's exported fields, in declaration order, become the ordered inputs; a
// field's Go type is classified by Classify. Out is classified the same way
// to produce the single output SemanticType; an Out of type struct{} means
// the handler declares no meaningful output (HasOutput=false).
func ReflectHandler(handler any) (*HandlerInfo, error) {
	if handler == nil {
		return nil, fmt.Errorf("semtype: handler must not be nil")
	}
	t := reflect.TypeOf(handler)
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("semtype: handler must be a function, got %s", t.Kind())
	}
	if t.NumIn() < 2 || t.In(0) != ctxType {
		return nil, fmt.Errorf("semtype: handler's first parameter must be context.Context")
	}

	inType := t.In(1)
	for inType.Kind() == reflect.Pointer {
		inType = inType.Elem()
	}
	if inType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("semtype: handler's second parameter must be a struct or pointer-to-struct, got %s", inType.Kind())
	}
	inputs, err := structFieldParams(inType)
	if err != nil {
		return nil, err
	}

	switch {
	case t.NumIn() == 2 && t.NumOut() == 2:
		if t.Out(1) != errType {
			return nil, fmt.Errorf("semtype: unary handler's last return value must be error")
		}
		info := &HandlerInfo{Inputs: inputs, Streaming: false, InStructType: inType}
		out := t.Out(0)
		if out != voidType {
			info.Output = Classify(out)
			if info.Output.Kind == KindTensor {
				info.Output.Direction = DirectionOutput
			}
			info.HasOutput = true
			info.OutType = out
		} else {
			info.Output = UnknownType
		}
		return info, nil

	case t.NumIn() == 3 && t.NumOut() == 1:
		if t.Out(0) != errType {
			return nil, fmt.Errorf("semtype: streaming handler must return a single error")
		}
		yield := t.In(2)
		if yield.Kind() != reflect.Func || yield.NumIn() != 1 || yield.NumOut() != 1 || yield.Out(0) != errType {
			return nil, fmt.Errorf("semtype: streaming handler's third parameter must be func(Out) error")
		}
		info := &HandlerInfo{Inputs: inputs, Streaming: true, InStructType: inType}
		out := yield.In(0)
		if out != voidType {
			info.Output = Classify(out)
			if info.Output.Kind == KindTensor {
				info.Output.Direction = DirectionOutput
			}
			info.HasOutput = true
			info.OutType = out
		} else {
			info.Output = UnknownType
		}
		return info, nil

	default:
		return nil, fmt.Errorf("semtype: unrecognized handler signature %s", t)
	}
}

func structFieldParams(structType reflect.Type) ([]Param, error) {
	params := make([]Param, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		f := structType.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("blazerpc"); ok && tag != "" {
			name = tag
		}
		params = append(params, Param{Name: name, Type: Classify(f.Type)})
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("semtype: handler input struct %s has no exported fields", structType)
	}
	return params, nil
}
