package wirecodec

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Ifihan/blazerpc/internal/semtype"
)

// tensorJSON is the wire-level shape of a TensorEnvelope (spec.md §3, §4.C):
// shape/dtype/base64 data, nested inside the value-encoding of a request or
// response envelope.
type tensorJSON struct {
	Shape []int64 `json:"shape"`
	Dtype string  `json:"dtype"`
	Data  string  `json:"data"`
}

// EncodeTensor renders a semtype.Tensor as its wire-level JSON object. len
// must equal ∏shape·sizeof(dtype) for fixed-width dtypes (spec.md §3); for
// the variable-width bytes/string dtypes the cell count, not the byte
// length, is checked against ∏shape.
func EncodeTensor(t semtype.Tensor) (json.RawMessage, error) {
	if !t.DType.Valid() {
		return nil, serErr("encode_response", fmt.Sprintf("unknown tensor dtype %q", t.DType), nil)
	}
	shape := make([]int64, len(t.Shape))
	count := int64(1)
	for i, d := range t.Shape {
		shape[i] = d.Size
		count *= d.Size
	}
	if err := validateTensorLayout(t.DType, count, t.Data); err != nil {
		return nil, serErr("encode_response", "tensor data does not match its declared shape", err)
	}
	wire := tensorJSON{
		Shape: shape,
		Dtype: string(t.DType),
		Data:  base64.StdEncoding.EncodeToString(t.Data),
	}
	out, err := json.Marshal(wire)
	if err != nil {
		return nil, serErr("encode_response", "failed to marshal tensor envelope", err)
	}
	return out, nil
}

// DecodeTensor parses a wire-level tensor JSON object back into a
// semtype.Tensor. Round-tripping DecodeTensor(EncodeTensor(t)) reproduces t
// bit-exactly for every supported dtype and shape (spec.md §8 property 3).
func DecodeTensor(raw json.RawMessage) (semtype.Tensor, error) {
	var wire tensorJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return semtype.Tensor{}, serErr("decode_request", "malformed tensor envelope", err)
	}
	dtype := semtype.DType(wire.Dtype)
	if !dtype.Valid() {
		return semtype.Tensor{}, serErr("decode_request", fmt.Sprintf("unknown tensor dtype %q", wire.Dtype), nil)
	}
	data, err := base64.StdEncoding.DecodeString(wire.Data)
	if err != nil {
		return semtype.Tensor{}, serErr("decode_request", "tensor data is not valid base64", err)
	}
	shape := make([]semtype.ShapeDim, len(wire.Shape))
	count := int64(1)
	for i, n := range wire.Shape {
		shape[i] = semtype.FixedDim(n)
		count *= n
	}
	if err := validateTensorLayout(dtype, count, data); err != nil {
		return semtype.Tensor{}, serErr("decode_request", "tensor data does not match its declared shape", err)
	}
	return semtype.Tensor{Shape: shape, DType: dtype, Data: data}, nil
}

// validateTensorLayout checks that data's layout agrees with count cells of
// dtype: for fixed-width dtypes the byte length must equal count*cellSize;
// for bytes/string the sequence of uint32_le-length-prefixed cells must
// contain exactly count cells (spec.md §4.C).
func validateTensorLayout(dtype semtype.DType, count int64, data []byte) error {
	if size, ok := dtype.CellSize(); ok {
		want := count * int64(size)
		if int64(len(data)) != want {
			return fmt.Errorf("expected %d bytes for %d cells of dtype %s, got %d", want, count, dtype, len(data))
		}
		return nil
	}
	// variable-width: bytes or string, uint32_le length-prefixed cells.
	var cells int64
	rest := data
	for len(rest) > 0 {
		if len(rest) < 4 {
			return fmt.Errorf("truncated length prefix for dtype %s", dtype)
		}
		n := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(len(rest)) < uint64(n) {
			return fmt.Errorf("truncated cell payload for dtype %s", dtype)
		}
		rest = rest[n:]
		cells++
	}
	if cells != count {
		return fmt.Errorf("expected %d cells of dtype %s, found %d", count, dtype, cells)
	}
	return nil
}
