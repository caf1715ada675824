// Package structval realizes the spec's StructuredValue tagged union
// (null/bool/number/string/list/map) as google.golang.org/protobuf's
// structpb.Value well-known type, an exact semantic match for its Kind
// oneof. It is the wire-neutral payload that crosses the host/guest
// boundary and appears in RPC arguments.
package structval

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bicycledb/bicycledb/bicerr"
)

// Value is the dynamic tagged-union payload. An alias of structpb.Value so
// callers can use structpb's own constructors (NewStringValue, NewListValue,
// ...) without an adapter layer.
type Value = structpb.Value

// Null returns the null structured value, the default output for a guest
// that never calls host_set_output.
func Null() *Value { return structpb.NewNullValue() }

// Marshal encodes v as protobuf wire bytes, length-delimited once embedded
// in a larger message. A nil v encodes as the null value.
func Marshal(v *Value) ([]byte, error) {
	if v == nil {
		v = Null()
	}
	b, err := proto.Marshal(v)
	if err != nil {
		return nil, bicerr.Wrap(bicerr.DecodeError, err, "marshal structured value")
	}
	return b, nil
}

// Unmarshal decodes wire bytes produced by Marshal back into a Value.
func Unmarshal(data []byte) (*Value, error) {
	v := new(Value)
	if err := proto.Unmarshal(data, v); err != nil {
		return nil, bicerr.Wrap(bicerr.DecodeError, err, "unmarshal structured value")
	}
	return v, nil
}

// IsNull reports whether v is unset or carries the null variant.
func IsNull(v *Value) bool {
	if v == nil || v.GetKind() == nil {
		return true
	}
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}

// Equal reports deep equality of two structured values, used by tests that
// assert round-trip identity (invariant 7: Biplane I/O echo).
func Equal(a, b *Value) bool {
	if IsNull(a) && IsNull(b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return proto.Equal(a, b)
}
