// Package idl implements the IDL generator (component F): it renders a
// snapshot of a registry's ModelDescriptors into the textual .proto
// document an external gRPC client would use to talk to the server,
// built with protobuilder/protoprint the way the teacher's protoreg
// package builds descriptors for GraphQL resolvers (spec.md §4.F).
package idl

import (
	"bytes"
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/Ifihan/blazerpc/internal/naming"
	"github.com/Ifihan/blazerpc/internal/registry"
	"github.com/Ifihan/blazerpc/internal/semtype"
)

const (
	packageName = "blazerpc"
	filePath    = "blazerpc/service.proto"
	serviceName = "InferenceService"
)

// Generate renders models into a single proto3 document: package blazerpc,
// a shared TensorProto message, one <Pascal>Request/<Pascal>Response
// message pair per model, and an InferenceService with one RPC per model
// named Predict<Pascal(name)> (spec.md §4.F).
func Generate(models []*registry.ModelDescriptor) (string, error) {
	fb := protobuilder.NewFile(filePath)
	fb.SetPackageName(protoreflect.FullName(packageName))
	fb.SetSyntax(protoreflect.Proto3)

	tensorMB := buildTensorMessage()
	fb.AddMessage(tensorMB)

	svc := protobuilder.NewService(protoreflect.Name(serviceName))
	fb.AddService(svc)

	for _, m := range models {
		reqMB := buildRequestMessage(m, tensorMB)
		respMB := buildResponseMessage(m, tensorMB)
		fb.AddMessage(reqMB)
		fb.AddMessage(respMB)

		methodName := protoreflect.Name("Predict" + naming.Pascal(m.Name))
		mb := protobuilder.NewMethod(
			methodName,
			protobuilder.RpcTypeMessage(reqMB, false),
			protobuilder.RpcTypeMessage(respMB, m.Streaming),
		)
		svc.AddMethod(mb)
	}

	fd, err := fb.Build()
	if err != nil {
		return "", fmt.Errorf("idl: failed to build file descriptor: %w", err)
	}

	var buf bytes.Buffer
	pp := protoprint.Printer{}
	if err := pp.PrintProtoFile(fd, &buf); err != nil {
		return "", fmt.Errorf("idl: failed to render proto text: %w", err)
	}
	return buf.String(), nil
}

func buildTensorMessage() *protobuilder.MessageBuilder {
	mb := protobuilder.NewMessage("TensorProto")

	shape := protobuilder.NewField("shape", protobuilder.FieldTypeScalar(protoreflect.Int64Kind))
	shape.SetRepeated()
	shape.SetNumber(1)

	dtype := protobuilder.NewField("dtype", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	dtype.SetNumber(2)

	data := protobuilder.NewField("data", protobuilder.FieldTypeScalar(protoreflect.BytesKind))
	data.SetNumber(3)

	mb.AddField(shape)
	mb.AddField(dtype)
	mb.AddField(data)
	return mb
}

func buildRequestMessage(m *registry.ModelDescriptor, tensorMB *protobuilder.MessageBuilder) *protobuilder.MessageBuilder {
	name := naming.Pascal(m.Name) + "Request"
	reqMB := protobuilder.NewMessage(protoreflect.Name(name))

	fields := make([]*protobuilder.FieldBuilder, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		ft, repeated := fieldType(in.Type, tensorMB)
		fb := protobuilder.NewField(protoreflect.Name(naming.SnakeCase(in.Name)), ft)
		if repeated {
			fb.SetRepeated()
		}
		reqMB.AddField(fb)
		fields = append(fields, fb)
	}
	// Field numbers are assigned sequentially in parameter-declaration
	// order, starting at 1.
	for i, fb := range fields {
		fb.SetNumber(protoreflect.FieldNumber(i + 1))
	}
	return reqMB
}

func buildResponseMessage(m *registry.ModelDescriptor, tensorMB *protobuilder.MessageBuilder) *protobuilder.MessageBuilder {
	name := naming.Pascal(m.Name) + "Response"
	respMB := protobuilder.NewMessage(protoreflect.Name(name))
	if !m.HasOutput {
		return respMB
	}
	ft, repeated := fieldType(m.Output, tensorMB)
	fb := protobuilder.NewField("result", ft)
	fb.SetNumber(1)
	if repeated {
		fb.SetRepeated()
	}
	respMB.AddField(fb)
	return respMB
}

// fieldType maps a SemanticType to a proto field type and whether it must
// be declared repeated (spec.md §4.F's type-mapping table). A list whose
// element is itself a list, or any other shape the mapping doesn't cover,
// falls back to plain bytes.
func fieldType(t semtype.SemanticType, tensorMB *protobuilder.MessageBuilder) (*protobuilder.FieldType, bool) {
	switch t.Kind {
	case semtype.KindList:
		if t.Elem == nil || t.Elem.Kind == semtype.KindList {
			return protobuilder.FieldTypeScalar(protoreflect.BytesKind), false
		}
		inner, _ := fieldType(*t.Elem, tensorMB)
		return inner, true
	case semtype.KindTensor:
		return protobuilder.FieldTypeMessage(tensorMB), false
	case semtype.KindScalar:
		return protobuilder.FieldTypeScalar(scalarKind(t.Scalar)), false
	default: // KindOpaque, KindUnknown
		return protobuilder.FieldTypeScalar(protoreflect.BytesKind), false
	}
}

func scalarKind(s semtype.ScalarKind) protoreflect.Kind {
	switch s {
	case semtype.ScalarInt64:
		return protoreflect.Int64Kind
	case semtype.ScalarFloat:
		return protoreflect.FloatKind
	case semtype.ScalarDouble:
		return protoreflect.DoubleKind
	case semtype.ScalarBool:
		return protoreflect.BoolKind
	case semtype.ScalarString:
		return protoreflect.StringKind
	case semtype.ScalarBytes:
		return protoreflect.BytesKind
	default:
		return protoreflect.BytesKind
	}
}
