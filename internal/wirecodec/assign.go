package wirecodec

import (
	"fmt"
	"reflect"

	"github.com/Ifihan/blazerpc/internal/semtype"
)

// AssignInto copies decoded request values (as returned by DecodeRequest)
// into the exported fields of dst, an addressable struct value of the
// handler's input type. Fields whose parameter name has no entry in values
// (spec.md §4.C: "missing keys ⇒ parameter is absent") are left at their
// zero value.
func AssignInto(dst reflect.Value, inputs []semtype.Param, values map[string]any) error {
	if dst.Kind() != reflect.Struct {
		return fmt.Errorf("wirecodec: AssignInto requires a struct, got %s", dst.Kind())
	}
	structType := dst.Type()
	byName := make(map[string]int, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		f := structType.Field(i)
		name := f.Name
		if tag, ok := f.Tag.Lookup("blazerpc"); ok && tag != "" {
			name = tag
		}
		byName[name] = i
	}

	for _, p := range inputs {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		idx, ok := byName[p.Name]
		if !ok {
			continue
		}
		if err := assignValue(dst.Field(idx), v); err != nil {
			return serErr("decode_request", fmt.Sprintf("field %q", p.Name), err)
		}
	}
	return nil
}

func assignValue(dst reflect.Value, v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	dstType := dst.Type()

	if rv.Type().AssignableTo(dstType) {
		dst.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(dstType) && isNumericKind(dstType.Kind()) && isNumericKind(rv.Kind()) {
		dst.Set(rv.Convert(dstType))
		return nil
	}
	if dstType.Kind() == reflect.Slice && rv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(dstType, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := assignValue(out.Index(i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, dstType)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
