package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct{ Text string }

func echoHandler(ctx context.Context, in *echoArgs) (string, error) {
	return "Echo: " + in.Text, nil
}

func streamHandler(ctx context.Context, in *echoArgs, yield func(string) error) error {
	return yield(in.Text)
}

func TestRegister_RejectsEmptyInputs(t *testing.T) {
	type emptyArgs struct{}
	r := New()
	_, err := r.Register("bad", "", func(ctx context.Context, in *emptyArgs) (string, error) { return "", nil }, false)
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestRegister_DefaultsVersion(t *testing.T) {
	r := New()
	desc, err := r.Register("echo", "", echoHandler, false)
	require.NoError(t, err)
	assert.Equal(t, "1", desc.Version)
}

func TestRegister_StreamingMustAgreeWithVariant(t *testing.T) {
	r := New()
	_, err := r.Register("echo", "1", echoHandler, true)
	require.Error(t, err)

	_, err = r.Register("tokens", "1", streamHandler, false)
	require.Error(t, err)

	_, err = r.Register("tokens", "1", streamHandler, true)
	require.NoError(t, err)
}

func TestRegister_DuplicateOverwrites(t *testing.T) {
	r := New()
	_, err := r.Register("echo", "1", echoHandler, false)
	require.NoError(t, err)

	replacement := func(ctx context.Context, in *echoArgs) (string, error) { return "replaced", nil }
	_, err = r.Register("echo", "1", replacement, false)
	require.NoError(t, err)

	require.Equal(t, 1, r.Len())
	desc, err := r.Get("echo", "1")
	require.NoError(t, err)
	out, _ := desc.Handler.(func(context.Context, *echoArgs) (string, error))(context.Background(), &echoArgs{})
	assert.Equal(t, "replaced", out)
}

func TestGet_NotFound(t *testing.T) {
	r := New()
	_, err := r.Get("missing", "1")
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestList_PreservesRegistrationOrder(t *testing.T) {
	r := New()
	_, err := r.Register("charlie", "1", echoHandler, false)
	require.NoError(t, err)
	_, err = r.Register("alpha", "1", echoHandler, false)
	require.NoError(t, err)
	_, err = r.Register("bravo", "1", echoHandler, false)
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, names)
}

func TestRegister_VectorizedHandlerMustMatchShape(t *testing.T) {
	r := New()
	vec := func(ctx context.Context, reqs []*echoArgs) ([]string, error) {
		out := make([]string, len(reqs))
		for i, req := range reqs {
			out[i] = "Echo: " + req.Text
		}
		return out, nil
	}
	desc, err := r.Register("echo", "1", echoHandler, false, WithVectorizedHandler(vec))
	require.NoError(t, err)
	assert.NotNil(t, desc.VectorizedHandler)
}

func TestRegister_VectorizedHandlerRejectsMismatch(t *testing.T) {
	r := New()
	type other struct{ Other int }
	vec := func(ctx context.Context, reqs []*other) ([]string, error) { return nil, nil }
	_, err := r.Register("echo", "1", echoHandler, false, WithVectorizedHandler(vec))
	require.Error(t, err)
}

func TestList_AppearsOncePerKey(t *testing.T) {
	r := New()
	_, err := r.Register("echo", "1", echoHandler, false)
	require.NoError(t, err)
	_, err = r.Register("echo", "1", echoHandler, false)
	require.NoError(t, err)

	assert.Len(t, r.List(), 1)
}
