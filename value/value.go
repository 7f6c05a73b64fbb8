// Package value defines the primitive tagged-union value type shared by
// the runtime column table and the rollup/pivot trees.
package value

import (
	"fmt"
	"math"
)

// Type tags the variant currently held by a Value.
type Type int

const (
	Null Type = iota
	Integer
	Float
	Text
)

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a tagged union: {null, integer (int64), float (float64),
// text (pool id)}. A byte-blob variant is recognized at the engine
// boundary but coerced to Null inside the rollup/pivot core (§3.1), so
// it has no representation here.
type Value struct {
	typ   Type
	i     int64
	f     float64
	textp uint32 // string pool id, only meaningful when typ == Text
}

// NullValue returns the null Value.
func NullValue() Value { return Value{typ: Null} }

// IntValue wraps a 64-bit integer.
func IntValue(i int64) Value { return Value{typ: Integer, i: i} }

// FloatValue wraps a 64-bit float.
func FloatValue(f float64) Value { return Value{typ: Float, f: f} }

// TextValue wraps a string-pool id.
func TextValue(poolID uint32) Value { return Value{typ: Text, textp: poolID} }

func (v Value) Type() Type   { return v.typ }
func (v Value) IsNull() bool { return v.typ == Null }

// Int returns the wrapped integer. It panics if Type() != Integer.
func (v Value) Int() int64 {
	if v.typ != Integer {
		panic(fmt.Sprintf("value: Int() called on %v value", v.typ))
	}
	return v.i
}

// Float returns the wrapped float. It panics if Type() != Float.
func (v Value) Float() float64 {
	if v.typ != Float {
		panic(fmt.Sprintf("value: Float() called on %v value", v.typ))
	}
	return v.f
}

// TextID returns the wrapped string-pool id. It panics if Type() != Text.
func (v Value) TextID() uint32 {
	if v.typ != Text {
		panic(fmt.Sprintf("value: TextID() called on %v value", v.typ))
	}
	return v.textp
}

// AsFloat converts v to a float64 for comparison purposes: numeric
// variants convert directly, null becomes negative infinity (per the
// rollup/pivot aggregate-comparison rule in spec §4.8), and text is not
// convertible (ok=false).
func (v Value) AsFloat() (f float64, ok bool) {
	switch v.typ {
	case Null:
		return math.Inf(-1), true
	case Integer:
		return float64(v.i), true
	case Float:
		return v.f, true
	default:
		return 0, false
	}
}

