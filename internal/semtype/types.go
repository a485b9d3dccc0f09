// Package semtype implements the type reflector (component A): it derives a
// closed, tagged SemanticType from a Go handler's declared signature, the way
// a dynamic-language framework would derive one from runtime annotations.
package semtype

import "fmt"

// Kind discriminates the SemanticType tagged variant.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindTensor
	KindOpaque
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindTensor:
		return "tensor"
	case KindOpaque:
		return "opaque"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ScalarKind enumerates the recognized scalar kinds.
type ScalarKind int

const (
	ScalarInt64 ScalarKind = iota
	ScalarFloat
	ScalarDouble
	ScalarBool
	ScalarString
	ScalarBytes
)

func (s ScalarKind) String() string {
	switch s {
	case ScalarInt64:
		return "int64"
	case ScalarFloat:
		return "float"
	case ScalarDouble:
		return "double"
	case ScalarBool:
		return "bool"
	case ScalarString:
		return "string"
	case ScalarBytes:
		return "bytes"
	default:
		return fmt.Sprintf("ScalarKind(%d)", int(s))
	}
}

// Direction records whether a Tensor appears in a model's inputs or output.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

// DType is the canonical tensor cell-type tag used both on the wire and in
// generated IDL.
type DType string

const (
	DTypeFloat32 DType = "float"
	DTypeFloat64 DType = "double"
	DTypeInt32   DType = "int32"
	DTypeInt64   DType = "int64"
	DTypeUint32  DType = "uint32"
	DTypeUint64  DType = "uint64"
	DTypeBool    DType = "bool"
	DTypeBytes   DType = "bytes"
	DTypeString  DType = "string"
)

// CellSize returns the fixed per-cell byte width for dtype, or ok=false for
// the variable-width bytes/string dtypes (length-prefixed per cell).
func (d DType) CellSize() (size int, ok bool) {
	switch d {
	case DTypeFloat32, DTypeInt32, DTypeUint32:
		return 4, true
	case DTypeFloat64, DTypeInt64, DTypeUint64:
		return 8, true
	case DTypeBool:
		return 1, true
	default:
		return 0, false
	}
}

// Valid reports whether d is one of the canonical dtype tags.
func (d DType) Valid() bool {
	switch d {
	case DTypeFloat32, DTypeFloat64, DTypeInt32, DTypeInt64, DTypeUint32, DTypeUint64, DTypeBool, DTypeBytes, DTypeString:
		return true
	default:
		return false
	}
}

// ShapeDim is one entry of a tensor's shape. A dimension may be symbolic
// (named, size resolved only at call time) rather than a fixed integer; this
// supplements spec.md's "int or symbolic-name" shape entries (see
// SPEC_FULL.md §5).
type ShapeDim struct {
	Name     string
	Size     int64
	Symbolic bool
}

// SymbolicDim builds a named, unconstrained shape dimension.
func SymbolicDim(name string) ShapeDim {
	return ShapeDim{Name: name, Symbolic: true}
}

// FixedDim builds a concrete-size shape dimension.
func FixedDim(size int64) ShapeDim {
	return ShapeDim{Size: size}
}

// SemanticType is the closed tagged variant every handler parameter and
// return value is classified into. Only the fields relevant to Kind are
// meaningful; callers must switch on Kind before reading the rest.
type SemanticType struct {
	Kind Kind

	// valid when Kind == KindScalar
	Scalar ScalarKind

	// valid when Kind == KindList
	Elem *SemanticType

	// valid when Kind == KindTensor
	TensorDType DType
	Shape       []ShapeDim
	Direction   Direction
}

// ScalarType builds a KindScalar SemanticType.
func ScalarType(kind ScalarKind) SemanticType {
	return SemanticType{Kind: KindScalar, Scalar: kind}
}

// ListType builds a KindList SemanticType wrapping inner.
func ListType(inner SemanticType) SemanticType {
	return SemanticType{Kind: KindList, Elem: &inner}
}

// TensorType builds a KindTensor SemanticType.
func TensorType(dtype DType, shape []ShapeDim, dir Direction) SemanticType {
	return SemanticType{Kind: KindTensor, TensorDType: dtype, Shape: shape, Direction: dir}
}

// OpaqueType is the catch-all for annotations with no proto mapping.
var OpaqueType = SemanticType{Kind: KindOpaque}

// UnknownType marks a handler with no declared return type.
var UnknownType = SemanticType{Kind: KindUnknown}

func (s SemanticType) String() string {
	switch s.Kind {
	case KindScalar:
		return s.Scalar.String()
	case KindList:
		if s.Elem == nil {
			return "list<?>"
		}
		return fmt.Sprintf("list<%s>", s.Elem.String())
	case KindTensor:
		return fmt.Sprintf("tensor<%s,%v>", s.TensorDType, s.Shape)
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Tensor is the explicit marker type application handlers use to declare a
// tensor-valued parameter or return value (type-reflector rule 1, spec.md
// §4.A). Data is the row-major little-endian byte layout described by
// spec.md §3 TensorEnvelope; fixed-width dtypes store cells back to back,
// bytes/string dtypes store uint32_le-length-prefixed cells.
type Tensor struct {
	Shape []ShapeDim
	DType DType
	Data  []byte
}
