package coltable

import (
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/value"
)

// ColumnType is the finalized, queryable type of a Table column.
type ColumnType int

const (
	ColumnInt ColumnType = iota
	ColumnFloat
	ColumnText
)

// AutoIDColumnName is the name of the synthetic hidden row-number column
// every finalized Table carries (§3.3 finalization).
const AutoIDColumnName = "_auto_id"

// Table is the immutable, finalized result of a Builder. Rows are
// accessed by ordinal; no hash lookups are required (§4.3 query surface).
type Table struct {
	pool    *pool.Pool
	rows    int
	columns []*column
	byName  map[string]int
}

// RowCount returns the number of rows, i.e. the row-range overlay span
// [0, RowCount()).
func (t *Table) RowCount() int { return t.rows }

// ColumnNames returns the declared (non-hidden) column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// ColumnIndex resolves a column name to its ordinal.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.byName[name]
	return i, ok
}

// ColumnType reports the finalized storage type of a column.
func (t *Table) ColumnType(col int) ColumnType {
	switch t.columns[col].kind {
	case kindFloat:
		return ColumnFloat
	case kindText:
		return ColumnText
	default:
		return ColumnInt
	}
}

// IsNull reports whether (col, row) holds a null value.
func (t *Table) IsNull(col, row int) bool {
	c := t.columns[col]
	switch c.kind {
	case kindInt:
		return !c.intsValid[row]
	case kindFloat:
		return !c.floatsValid[row]
	case kindText:
		return c.texts[row] == pool.NullID
	default:
		return true
	}
}

// Int returns the integer value at (col, row); valid is false if the
// cell is null or the column is not IntStorage.
func (t *Table) Int(col, row int) (v int64, valid bool) {
	c := t.columns[col]
	if c.kind != kindInt {
		return 0, false
	}
	return c.ints[row], c.intsValid[row]
}

// Float returns the float value at (col, row); valid is false if the
// cell is null or the column is not FloatStorage.
func (t *Table) Float(col, row int) (v float64, valid bool) {
	c := t.columns[col]
	if c.kind != kindFloat {
		return 0, false
	}
	return c.floats[row], c.floatsValid[row]
}

// Text returns the resolved string at (col, row); valid is false if the
// cell is null or the column is not TextStorage.
func (t *Table) Text(col, row int) (s string, valid bool) {
	c := t.columns[col]
	if c.kind != kindText {
		return "", false
	}
	id := c.texts[row]
	if id == pool.NullID {
		return "", false
	}
	return t.pool.Resolve(id), true
}

// Value returns the cell at (col, row) as a tagged value.Value.
func (t *Table) Value(col, row int) value.Value {
	c := t.columns[col]
	switch c.kind {
	case kindInt:
		if !c.intsValid[row] {
			return value.NullValue()
		}
		return value.IntValue(c.ints[row])
	case kindFloat:
		if !c.floatsValid[row] {
			return value.NullValue()
		}
		return value.FloatValue(c.floats[row])
	case kindText:
		id := c.texts[row]
		if id == pool.NullID {
			return value.NullValue()
		}
		return value.TextValue(id)
	default:
		return value.NullValue()
	}
}

// AutoID returns the synthetic row-number id for row (the hidden id
// column appended at finalization).
func (t *Table) AutoID(row int) int64 { return int64(row) }

// Pool returns the string pool backing this table's text columns, so
// callers holding a value.Value with Type()==Text can resolve it.
func (t *Table) Pool() *pool.Pool { return t.pool }
