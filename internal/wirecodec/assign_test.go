package wirecodec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ifihan/blazerpc/internal/semtype"
)

type addArgs struct {
	A float64
	B float64
}

type sentimentArgs struct {
	Text []string
}

func TestAssignInto_Scalars(t *testing.T) {
	inputs := []semtype.Param{
		{Name: "A", Type: semtype.ScalarType(semtype.ScalarDouble)},
		{Name: "B", Type: semtype.ScalarType(semtype.ScalarDouble)},
	}
	values, err := DecodeRequest([]byte(`{"A":2.5,"B":3.5}`), inputs)
	require.NoError(t, err)

	var args addArgs
	dst := reflect.ValueOf(&args).Elem()
	require.NoError(t, AssignInto(dst, inputs, values))
	assert.Equal(t, 2.5, args.A)
	assert.Equal(t, 3.5, args.B)
}

func TestAssignInto_List(t *testing.T) {
	inputs := []semtype.Param{{Name: "Text", Type: semtype.ListType(semtype.ScalarType(semtype.ScalarString))}}
	values, err := DecodeRequest([]byte(`{"Text":["good","bad"]}`), inputs)
	require.NoError(t, err)

	var args sentimentArgs
	dst := reflect.ValueOf(&args).Elem()
	require.NoError(t, AssignInto(dst, inputs, values))
	assert.Equal(t, []string{"good", "bad"}, args.Text)
}

func TestAssignInto_MissingFieldLeftZero(t *testing.T) {
	inputs := []semtype.Param{
		{Name: "A", Type: semtype.ScalarType(semtype.ScalarDouble)},
		{Name: "B", Type: semtype.ScalarType(semtype.ScalarDouble)},
	}
	values, err := DecodeRequest([]byte(`{"A":2.5}`), inputs)
	require.NoError(t, err)

	var args addArgs
	dst := reflect.ValueOf(&args).Elem()
	require.NoError(t, AssignInto(dst, inputs, values))
	assert.Equal(t, 2.5, args.A)
	assert.Equal(t, 0.0, args.B)
}
