package coltable

import (
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
)

// Builder accumulates per-column, schemaless-at-build values and
// finalizes them into an immutable Table. It is the core of C3: the
// runtime column table (§4.3).
type Builder struct {
	pool    *pool.Pool
	columns []*column
	byName  map[string]int
}

// NewBuilder constructs a Builder over the given column names. declared,
// if non-nil, must have one entry per column name (NoDeclaredType is a
// valid entry meaning "infer from first append").
func NewBuilder(p *pool.Pool, colNames []string, declared []DeclaredType) *Builder {
	b := &Builder{
		pool:    p,
		columns: make([]*column, len(colNames)),
		byName:  make(map[string]int, len(colNames)),
	}
	for i, name := range colNames {
		dt := NoDeclaredType
		if i < len(declared) {
			dt = declared[i]
		}
		b.columns[i] = newColumn(name, dt)
		b.byName[name] = i
	}
	return b
}

// ColumnIndex returns the ordinal of a column by name.
func (b *Builder) ColumnIndex(name string) (int, bool) {
	i, ok := b.byName[name]
	return i, ok
}

// ColumnCount returns the number of columns the builder was constructed with.
func (b *Builder) ColumnCount() int { return len(b.columns) }

func (b *Builder) AppendNull(col int) status.Status {
	return b.columns[col].appendNull()
}

func (b *Builder) AppendInt(col int, v int64) status.Status {
	return b.columns[col].appendInt(v)
}

func (b *Builder) AppendFloat(col int, v float64) status.Status {
	return b.columns[col].appendFloat(v)
}

func (b *Builder) AppendText(col int, s string) status.Status {
	return b.columns[col].appendText(s, b.pool)
}

// Finalize produces an immutable Table with rows rows. Every column must
// have exactly rows elements (LeadingNulls columns are first promoted to
// IntStorage, rule 6); a mismatch is a fatal precondition violation
// (builder misuse), not a user error, so Finalize panics rather than
// returning a Status — callers that drive row counts themselves (the
// only legal caller) never hit this path.
func (b *Builder) Finalize(rows int) *Table {
	for _, c := range b.columns {
		c.finalize(rows)
	}
	t := &Table{
		pool:    b.pool,
		rows:    rows,
		columns: b.columns,
		byName:  b.byName,
	}
	return t
}
