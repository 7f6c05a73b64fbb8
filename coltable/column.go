package coltable

import (
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
)

// DeclaredType is an optional per-column type hint a Builder may be
// constructed with (§4.3 Builder contract). It never blocks a legal
// promotion; it only seeds the column's initial storage kind instead of
// LeadingNulls so the first non-null append doesn't need to guess.
type DeclaredType int

const (
	// NoDeclaredType means the column's type is decided purely by the
	// first non-null append, per the promotion rules in §3.3.
	NoDeclaredType DeclaredType = iota
	IntOnly
	FloatOnly
	StringOnly
	IntNullable
	FloatNullable
	StringNullable
)

// kind identifies the current state of a column, mirroring the §3.3
// tagged union {LeadingNulls, IntStorage, FloatStorage, TextStorage}.
type kind int

const (
	kindLeadingNulls kind = iota
	kindInt
	kindFloat
	kindText
)

// maxDoubleRepresentable is 2^53: the largest magnitude integer that is
// exactly representable as a float64.
const maxDoubleRepresentable = int64(1) << 53

func isExactlyRepresentableAsDouble(v int64) bool {
	return v >= -maxDoubleRepresentable && v <= maxDoubleRepresentable
}

// column holds one builder column's append-time storage.
type column struct {
	name     string
	declared DeclaredType
	kind     kind

	leadingNulls int

	ints      []int64
	intsValid []bool

	floats      []float64
	floatsValid []bool

	// texts holds string-pool ids; the pool's reserved null id doubles
	// as the representation for both NULL and the empty string, per
	// §3.2 ("id 0 reserved for the empty/null string").
	texts []uint32
}

func newColumn(name string, declared DeclaredType) *column {
	c := &column{name: name, declared: declared}
	switch declared {
	case IntOnly, IntNullable:
		c.kind = kindInt
	case FloatOnly, FloatNullable:
		c.kind = kindFloat
	case StringOnly, StringNullable:
		c.kind = kindText
	default:
		c.kind = kindLeadingNulls
	}
	return c
}

func (c *column) length() int {
	switch c.kind {
	case kindLeadingNulls:
		return c.leadingNulls
	case kindInt:
		return len(c.ints)
	case kindFloat:
		return len(c.floats)
	case kindText:
		return len(c.texts)
	}
	return 0
}

func (c *column) appendNull() status.Status {
	switch c.kind {
	case kindLeadingNulls:
		c.leadingNulls++
	case kindInt:
		c.ints = append(c.ints, 0)
		c.intsValid = append(c.intsValid, false)
	case kindFloat:
		c.floats = append(c.floats, 0)
		c.floatsValid = append(c.floatsValid, false)
	case kindText:
		c.texts = append(c.texts, pool.NullID)
	}
	return status.OK()
}

// promoteLeadingNullsToInt instantiates IntStorage filled with n nulls,
// per promotion rule 2.
func (c *column) promoteLeadingNullsToInt() {
	n := c.leadingNulls
	c.ints = make([]int64, n)
	c.intsValid = make([]bool, n)
	c.kind = kindInt
}

func (c *column) promoteLeadingNullsToFloat() {
	n := c.leadingNulls
	c.floats = make([]float64, n)
	c.floatsValid = make([]bool, n)
	c.kind = kindFloat
}

func (c *column) promoteLeadingNullsToText() {
	n := c.leadingNulls
	c.texts = make([]uint32, n)
	for i := range c.texts {
		c.texts[i] = pool.NullID
	}
	c.kind = kindText
}

func (c *column) appendInt(v int64) status.Status {
	if c.kind == kindLeadingNulls {
		c.promoteLeadingNullsToInt()
	}
	if c.kind == kindFloat {
		if !isExactlyRepresentableAsDouble(v) {
			return status.Errorf(status.TypeCoercion,
				"column %s contains %d which cannot be represented as a double", c.name, v)
		}
		c.floats = append(c.floats, float64(v))
		c.floatsValid = append(c.floatsValid, true)
		return status.OK()
	}
	if c.kind != kindInt {
		return status.Errorf(status.TypeCoercion, "column %s does not have consistent types", c.name)
	}
	c.ints = append(c.ints, v)
	c.intsValid = append(c.intsValid, true)
	return status.OK()
}

func (c *column) appendFloat(v float64) status.Status {
	if c.kind == kindLeadingNulls {
		c.promoteLeadingNullsToFloat()
	}
	if c.kind == kindInt {
		// Promotion rule 4: converting IntStorage to FloatStorage in
		// place requires every previously stored integer to be exactly
		// representable; build the replacement in a local slice first
		// so a mid-way failure leaves the column untouched.
		newFloats := make([]float64, len(c.ints))
		newValid := make([]bool, len(c.ints))
		for i, iv := range c.ints {
			if !c.intsValid[i] {
				continue
			}
			if !isExactlyRepresentableAsDouble(iv) {
				return status.Errorf(status.TypeCoercion,
					"column %s contains %d which cannot be represented as a double", c.name, iv)
			}
			newFloats[i] = float64(iv)
			newValid[i] = true
		}
		c.floats = newFloats
		c.floatsValid = newValid
		c.ints = nil
		c.intsValid = nil
		c.kind = kindFloat
	}
	if c.kind != kindFloat {
		return status.Errorf(status.TypeCoercion, "column %s does not have consistent types", c.name)
	}
	c.floats = append(c.floats, v)
	c.floatsValid = append(c.floatsValid, true)
	return status.OK()
}

func (c *column) appendText(s string, p *pool.Pool) status.Status {
	if c.kind == kindLeadingNulls {
		c.promoteLeadingNullsToText()
	}
	if c.kind != kindText {
		return status.Errorf(status.TypeCoercion, "column %s does not have consistent types", c.name)
	}
	c.texts = append(c.texts, p.Intern(s))
	return status.OK()
}

// finalize promotes a still-LeadingNulls column to IntStorage (rule 6)
// and checks the fatal length invariant. It panics (a documented fatal
// precondition, not a user error) if the length does not match rows.
func (c *column) finalize(rows int) {
	if c.kind == kindLeadingNulls {
		c.promoteLeadingNullsToInt()
	}
	if c.length() != rows {
		panic("coltable: column " + c.name + " length does not match declared row count")
	}
}
