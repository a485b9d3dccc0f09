package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Ifihan/blazerpc/internal/registry"
)

type echoArgs struct{ Text string }

func echoHandler(ctx context.Context, in *echoArgs) (string, error) {
	return "Echo: " + in.Text, nil
}

func failingHandler(ctx context.Context, in *echoArgs) (string, error) {
	return "", errors.New("boom")
}

func streamArgs(ctx context.Context, in *echoArgs, yield func(string) error) error {
	if err := yield(in.Text); err != nil {
		return err
	}
	return yield(in.Text + "!")
}

func newTable(t *testing.T, reg *registry.Registry) *Table {
	t.Helper()
	tbl := BuildTable(reg, 4, 10*time.Millisecond, 8)
	tbl.Start()
	t.Cleanup(tbl.Stop)
	return tbl
}

func TestTable_UnaryRoundTrip(t *testing.T) {
	reg := registry.New()
	_, err := reg.Register("echo", "1", echoHandler, false)
	require.NoError(t, err)

	tbl := newTable(t, reg)
	sd := tbl.ServiceDesc()
	require.Len(t, sd.Methods, 1)
	assert.Equal(t, "PredictEcho", sd.Methods[0].MethodName)

	reqBytes, err := json.Marshal(map[string]any{"text": "hi"})
	require.NoError(t, err)

	out, err := sd.Methods[0].Handler(nil, context.Background(), func(v any) error {
		*(v.(*[]byte)) = reqBytes
		return nil
	}, nil)
	require.NoError(t, err)

	var resp struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out.([]byte), &resp))
	assert.Equal(t, "Echo: hi", resp.Result)
}

func TestTable_HandlerErrorMapsToInternal(t *testing.T) {
	reg := registry.New()
	_, err := reg.Register("fail", "1", failingHandler, false)
	require.NoError(t, err)

	tbl := newTable(t, reg)
	sd := tbl.ServiceDesc()

	reqBytes, _ := json.Marshal(map[string]any{"text": "x"})
	_, err = sd.Methods[0].Handler(nil, context.Background(), func(v any) error {
		*(v.(*[]byte)) = reqBytes
		return nil
	}, nil)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "boom")
	assert.Contains(t, st.Message(), "fail")
}

type recordingStream struct {
	ctx  context.Context
	recv []byte
	sent [][]byte
}

func fakeStream(recv []byte) *recordingStream {
	return &recordingStream{ctx: context.Background(), recv: recv}
}

func (s *recordingStream) SetHeader(metadata.MD) error  { return nil }
func (s *recordingStream) SendHeader(metadata.MD) error { return nil }
func (s *recordingStream) SetTrailer(metadata.MD)       {}
func (s *recordingStream) Context() context.Context     { return s.ctx }
func (s *recordingStream) SendMsg(m any) error {
	s.sent = append(s.sent, *(m.(*[]byte)))
	return nil
}
func (s *recordingStream) RecvMsg(m any) error {
	*(m.(*[]byte)) = s.recv
	return nil
}

func TestTable_StreamingSendsEachYield(t *testing.T) {
	reg := registry.New()
	_, err := reg.Register("tokens", "1", streamArgs, true)
	require.NoError(t, err)

	tbl := newTable(t, reg)
	sd := tbl.ServiceDesc()
	require.Len(t, sd.Streams, 1)
	assert.Equal(t, "PredictTokens", sd.Streams[0].StreamName)

	reqBytes, _ := json.Marshal(map[string]any{"text": "go"})
	stream := fakeStream(reqBytes)
	require.NoError(t, sd.Streams[0].Handler(nil, stream))
	require.Len(t, stream.sent, 2)

	var first struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(stream.sent[0], &first))
	assert.Equal(t, "go", first.Result)
}
