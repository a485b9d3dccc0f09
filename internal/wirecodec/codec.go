package wirecodec

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype this codec registers under.
// spec.md §6: "Content-subtype proto is advertised but the payload is the
// JSON envelope described in §4.C" — registering under the standard "proto"
// name means ordinary protoc-generated clients dial in exactly as they
// would against any other gRPC service; interop with them requires matching
// the envelope by hand, which is the tradeoff the spec accepts.
const CodecName = "proto"

// BypassCodec is the gRPC encoding.Codec that lets blazerpc's dynamically
// built methods hand the transport raw envelope bytes instead of a
// protobuf-encoded message (spec.md §4.C: "the framework hands the
// transport raw bytes and parses them itself"). The dispatch layer's
// dynamically built methods pass *[]byte in and out; health and reflection
// (external collaborators, spec.md §6) pass real proto.Message values over
// the same registered codec name, so BypassCodec falls back to standard
// protobuf marshaling for anything that isn't raw bytes.
type BypassCodec struct{}

func (BypassCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *[]byte:
		return *m, nil
	case []byte:
		return m, nil
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("wirecodec: bypass codec cannot marshal %T", v)
	}
}

func (BypassCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *[]byte:
		*m = append((*m)[:0], data...)
		return nil
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("wirecodec: bypass codec cannot unmarshal into %T", v)
	}
}

func (BypassCodec) Name() string { return CodecName }

// RegisterBypassCodec installs BypassCodec as the process-wide codec for
// CodecName. It must run once before the gRPC server starts accepting
// connections.
func RegisterBypassCodec() {
	encoding.RegisterCodec(BypassCodec{})
}
