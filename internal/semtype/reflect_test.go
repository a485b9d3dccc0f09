package semtype

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string
}

type addArgs struct {
	A float64
	B float64
}

type sentimentArgs struct {
	Text []string
}

type tensorArgs struct {
	Data Tensor
}

type opaqueArgs struct {
	Blob map[string]any
}

func TestReflectHandler_UnaryScalar(t *testing.T) {
	handler := func(ctx context.Context, in *echoArgs) (string, error) { return "Echo: " + in.Text, nil }
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	require.Len(t, info.Inputs, 1)
	assert.Equal(t, "Text", info.Inputs[0].Name)
	assert.Equal(t, ScalarType(ScalarString), info.Inputs[0].Type)
	assert.True(t, info.HasOutput)
	assert.Equal(t, ScalarType(ScalarString), info.Output)
	assert.False(t, info.Streaming)
}

func TestReflectHandler_PreservesDeclarationOrder(t *testing.T) {
	handler := func(ctx context.Context, in *addArgs) (float64, error) { return in.A + in.B, nil }
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	require.Len(t, info.Inputs, 2)
	assert.Equal(t, "A", info.Inputs[0].Name)
	assert.Equal(t, "B", info.Inputs[1].Name)
	assert.Equal(t, ScalarType(ScalarDouble), info.Inputs[0].Type)
}

func TestReflectHandler_List(t *testing.T) {
	handler := func(ctx context.Context, in *sentimentArgs) ([]float64, error) {
		out := make([]float64, len(in.Text))
		for i := range out {
			out[i] = 0.9
		}
		return out, nil
	}
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	assert.Equal(t, ListType(ScalarType(ScalarString)), info.Inputs[0].Type)
	assert.Equal(t, ListType(ScalarType(ScalarDouble)), info.Output)
}

func TestReflectHandler_Tensor(t *testing.T) {
	handler := func(ctx context.Context, in *tensorArgs) (Tensor, error) { return in.Data, nil }
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	assert.Equal(t, KindTensor, info.Inputs[0].Type.Kind)
	assert.Equal(t, KindTensor, info.Output.Kind)
}

func TestReflectHandler_Opaque(t *testing.T) {
	handler := func(ctx context.Context, in *opaqueArgs) (map[string]any, error) { return in.Blob, nil }
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	assert.Equal(t, KindOpaque, info.Inputs[0].Type.Kind)
	assert.Equal(t, KindOpaque, info.Output.Kind)
}

func TestReflectHandler_NoOutput(t *testing.T) {
	handler := func(ctx context.Context, in *echoArgs) (struct{}, error) { return struct{}{}, nil }
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	assert.False(t, info.HasOutput)
	assert.Equal(t, KindUnknown, info.Output.Kind)
}

func TestReflectHandler_EmptyInputsRejected(t *testing.T) {
	type emptyArgs struct{}
	handler := func(ctx context.Context, in *emptyArgs) (string, error) { return "", nil }
	_, err := ReflectHandler(handler)
	require.Error(t, err)
}

func TestReflectHandler_Streaming(t *testing.T) {
	handler := func(ctx context.Context, in *echoArgs, yield func(string) error) error {
		for _, chunk := range []string{"hello", " ", "world"} {
			if err := yield(chunk); err != nil {
				return err
			}
		}
		return nil
	}
	info, err := ReflectHandler(handler)
	require.NoError(t, err)
	assert.True(t, info.Streaming)
	assert.Equal(t, ScalarType(ScalarString), info.Output)
	assert.True(t, info.HasOutput)
}

func TestReflectHandler_RejectsMissingContext(t *testing.T) {
	handler := func(in *echoArgs) (string, error) { return in.Text, nil }
	_, err := ReflectHandler(handler)
	require.Error(t, err)
}

func TestReflectHandler_RejectsNonStructInput(t *testing.T) {
	handler := func(ctx context.Context, in string) (string, error) { return in, nil }
	_, err := ReflectHandler(handler)
	require.Error(t, err)
}

func TestClassify_BytesIsScalarNotList(t *testing.T) {
	assert.Equal(t, ScalarType(ScalarBytes), Classify(reflect.TypeOf([]byte(nil))))
}
