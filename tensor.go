package blazerpc

import "github.com/Ifihan/blazerpc/internal/semtype"

// Tensor, ShapeDim, and DType are re-exported at the root so application
// code can declare tensor-valued handler parameters and return values
// without importing the internal type reflector directly.
type (
	Tensor   = semtype.Tensor
	ShapeDim = semtype.ShapeDim
	DType    = semtype.DType
)

const (
	DTypeFloat32 = semtype.DTypeFloat32
	DTypeFloat64 = semtype.DTypeFloat64
	DTypeInt32   = semtype.DTypeInt32
	DTypeInt64   = semtype.DTypeInt64
	DTypeUint32  = semtype.DTypeUint32
	DTypeUint64  = semtype.DTypeUint64
	DTypeBool    = semtype.DTypeBool
	DTypeBytes   = semtype.DTypeBytes
	DTypeString  = semtype.DTypeString
)

// SymbolicDim and FixedDim build ShapeDim entries for a Tensor's Shape.
var (
	SymbolicDim = semtype.SymbolicDim
	FixedDim    = semtype.FixedDim
)
