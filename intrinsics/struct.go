package intrinsics

import (
	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/value"
)

// maxStructFields bounds struct(k1, v1, ...) to a fixed number of
// fields, per struct.cc.
const maxStructFields = 16

// Struct is an opaque key/value bag produced by the struct() aggregate-
// expression function (§4.9). Fields keep their argument order.
type Struct struct {
	keys   []string
	values []value.Value
}

// NewStruct builds a Struct from alternating key/value arguments; keys
// must be plain strings (not Values), mirroring struct.cc's requirement
// that keys are literal text, not expressions.
func NewStruct(args []value.Value, keyAt func(i int) (string, bool)) (Struct, status.Status) {
	if len(args)%2 != 0 {
		return Struct{}, status.Errorf(status.BadArgument, "struct() requires an even number of key/value arguments")
	}
	n := len(args) / 2
	if n == 0 || n > maxStructFields {
		return Struct{}, status.Errorf(status.BadArgument, "struct() requires between 1 and %d fields, got %d", maxStructFields, n)
	}
	s := Struct{keys: make([]string, n), values: make([]value.Value, n)}
	for i := 0; i < n; i++ {
		k, ok := keyAt(2 * i)
		if !ok {
			return Struct{}, status.Errorf(status.BadArgument, "struct() key %d must be text", i)
		}
		s.keys[i] = k
		s.values[i] = args[2*i+1]
	}
	return s, status.OK()
}

// Field looks up a field by key.
func (s Struct) Field(key string) (value.Value, bool) {
	for i, k := range s.keys {
		if k == key {
			return s.values[i], true
		}
	}
	return value.Value{}, false
}

// Len returns the number of fields.
func (s Struct) Len() int { return len(s.keys) }
