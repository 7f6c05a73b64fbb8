package rollup

import (
	"context"
	"fmt"
	"strings"

	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/value"
)

// BuildUnionQuery assembles the synthetic UNION ALL query described in
// §4.8 "Tree construction": one SELECT per level -1..d-1, each grouping
// by an increasing prefix of hierarchy, with later hierarchy columns and
// the grand-total row's columns padded with NULL.
func BuildUnionQuery(source string, hierarchy []string, aggs []string) string {
	d := len(hierarchy)
	var parts []string

	var grand strings.Builder
	grand.WriteString("SELECT -1 AS __level")
	for range hierarchy {
		grand.WriteString(", NULL")
	}
	for _, a := range aggs {
		grand.WriteString(", " + a)
	}
	grand.WriteString(" FROM " + source)
	parts = append(parts, grand.String())

	for level := 0; level < d; level++ {
		var b strings.Builder
		fmt.Fprintf(&b, "SELECT %d AS __level", level)
		for i, col := range hierarchy {
			if i <= level {
				b.WriteString(", " + col)
			} else {
				b.WriteString(", NULL")
			}
		}
		for _, a := range aggs {
			b.WriteString(", " + a)
		}
		b.WriteString(" FROM " + source)
		if level >= 0 {
			b.WriteString(" GROUP BY " + strings.Join(hierarchy[:level+1], ", "))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\nUNION ALL\n")
}

// Populate runs the union query through eng and inserts every row into
// tree, resolving text cells through p.
func Populate(eng *engine.Wrapper, p *pool.Pool, tree *Tree, source string, hierarchy []string, aggs []string) status.Status {
	sqlText := BuildUnionQuery(source, hierarchy, aggs)
	stmt, s := eng.Prepare(sqlText)
	if !s.Ok() {
		return status.Errorf(status.EngineError, "rollup source query: %s", s.Message())
	}
	defer stmt.Close()

	d := len(hierarchy)
	for {
		res, s := stmt.Step(context.Background())
		if !s.Ok() {
			return s
		}
		if res == engine.StepDone {
			break
		}
		level, _ := stmt.ColumnInt64(0)
		keys := make([]value.Value, d)
		for i := 0; i < d; i++ {
			keys[i] = cellValue(stmt, p, 1+i)
		}
		aggVals := make([]value.Value, len(aggs))
		for i := range aggs {
			aggVals[i] = cellValue(stmt, p, 1+d+i)
		}
		tree.InsertRow(int(level), keys, aggVals)
	}
	return status.OK()
}

func cellValue(stmt *engine.PreparedStatement, p *pool.Pool, col int) value.Value {
	switch v := stmt.ColumnValue(col).(type) {
	case nil:
		return value.NullValue()
	case int64:
		return value.IntValue(v)
	case float64:
		return value.FloatValue(v)
	case string:
		return value.TextValue(p.Intern(v))
	case []byte:
		// Byte blobs are coerced to null inside the rollup/pivot core
		// (spec §3.1); rollup/pivot has no use for opaque bytes.
		return value.NullValue()
	default:
		return value.NullValue()
	}
}
