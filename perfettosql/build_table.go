package perfettosql

import (
	"context"

	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/sqlparse"
	"github.com/k0kubun/perfettosql/status"
)

// declaredColumnType converts the schema's declared type mapping into a
// coltable.DeclaredType builder hint (§4.6 "Declared-type-to-column-type
// mapping"); it is nullable since no column declared here carries a
// NOT NULL constraint.
func declaredColumnType(colType coltable.ColumnType) coltable.DeclaredType {
	switch colType {
	case coltable.ColumnInt:
		return coltable.IntNullable
	case coltable.ColumnFloat:
		return coltable.FloatNullable
	default:
		return coltable.StringNullable
	}
}

// buildTableFromQuery streams prepared's remaining rows through a
// Builder and finalizes them into a Table, validating actual column
// names/types against an optional declared schema along the way (§4.6
// CREATE PERFETTO TABLE / the runtime table-valued-function result
// path that table-fn callers materialize through).
func buildTableFromQuery(p *pool.Pool, prepared *engine.PreparedStatement, declared []sqlparse.ArgumentDefinition) (*coltable.Table, status.Status) {
	n := prepared.ColumnCount()
	colNames := make([]string, n)
	for i := 0; i < n; i++ {
		colNames[i] = prepared.ColumnName(i)
	}
	ordered, s := validateSchema(colNames, declared)
	if !s.Ok() {
		return nil, s
	}

	declaredTypes := make([]coltable.DeclaredType, n)
	for i := range declaredTypes {
		if ordered == nil {
			declaredTypes[i] = coltable.NoDeclaredType
			continue
		}
		ct, s := columnTypeOf(ordered[i].Type, true)
		if !s.Ok() {
			return nil, s
		}
		declaredTypes[i] = declaredColumnType(ct)
	}

	b := coltable.NewBuilder(p, colNames, declaredTypes)
	rows := 0
	for {
		res, s := prepared.Step(context.Background())
		if !s.Ok() {
			return nil, s
		}
		if res == engine.StepDone {
			break
		}
		for i := 0; i < n; i++ {
			if appendErr := appendCell(b, i, prepared, p); !appendErr.Ok() {
				return nil, appendErr
			}
		}
		rows++
	}
	return b.Finalize(rows), status.OK()
}

// appendCell appends the statement's current row, column i to b,
// dispatching on SQLite's actual storage class via the raw accessor
// rather than a coercing one, so a column with no declared type infers
// its storage kind from the data itself (§3.3 promotion rules).
func appendCell(b *coltable.Builder, i int, prepared *engine.PreparedStatement, p *pool.Pool) status.Status {
	switch v := prepared.ColumnValue(i).(type) {
	case nil:
		return b.AppendNull(i)
	case int64:
		return b.AppendInt(i, v)
	case float64:
		return b.AppendFloat(i, v)
	case string:
		return b.AppendText(i, v)
	case []byte:
		return b.AppendText(i, string(v))
	default:
		return b.AppendNull(i)
	}
}
