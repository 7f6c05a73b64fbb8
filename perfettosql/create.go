package perfettosql

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/k0kubun/perfettosql/dataframe"
	"github.com/k0kubun/perfettosql/sqlparse"
	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/tablefn"
)

// dispatchNative executes one native DDL statement (§4.6 "CREATE
// handlers"). The caller rewrites the original SQL text to a harmless
// passthrough before forwarding it to the relational engine; this
// function only performs the side effect.
func (e *Engine) dispatchNative(stmt *sqlparse.Statement) status.Status {
	switch stmt.Kind {
	case sqlparse.KindCreateTable:
		return e.withSavepoint("create_table", func() status.Status { return e.createTable(stmt) })
	case sqlparse.KindCreateView:
		return e.withSavepoint("create_view", func() status.Status { return e.createView(stmt) })
	case sqlparse.KindCreateFunction:
		return e.createFunction(stmt)
	case sqlparse.KindCreateMacro:
		return e.createMacro(stmt)
	case sqlparse.KindCreateIndex:
		return e.createIndex(stmt)
	case sqlparse.KindDropIndex:
		return e.dropIndex(stmt)
	default:
		return status.Errorf(status.EngineError, "unhandled native statement kind %s", stmt.Kind)
	}
}

// withSavepoint wraps body in a SAVEPOINT/RELEASE pair, rolling back on
// failure (§4.6 "The operation is wrapped in a savepoint for
// atomicity; any failure rolls back"). A rollback that itself fails is
// escalated to Fatal rather than logged and ignored — an explicitly
// sanctioned rewrite choice (spec §9 "Open questions").
func (e *Engine) withSavepoint(label string, body func() status.Status) status.Status {
	ctx := context.Background()
	name := "sp_" + label + "_" + uuid.NewString()[:8]
	release, rollback, begin := e.wrapper.Savepoint(ctx, name)
	if !begin.Ok() {
		return begin
	}
	result := body()
	if !result.Ok() {
		if rs := rollback(); !rs.Ok() {
			if e.LogSink != nil {
				e.LogSink(fmt.Sprintf("rollback after failed %s also failed: %s (original error: %s)", label, rs.Message(), result.Message()))
			}
			return status.Errorf(status.Fatal, "rollback after failed %s also failed: %s (original error: %s)", label, rs.Message(), result.Message())
		}
		return result
	}
	if rs := release(); !rs.Ok() {
		if e.LogSink != nil {
			e.LogSink(fmt.Sprintf("release after successful %s failed: %s", label, rs.Message()))
		}
		return status.Errorf(status.Fatal, "release after successful %s failed: %s", label, rs.Message())
	}
	return status.OK()
}

func (e *Engine) createTable(stmt *sqlparse.Statement) status.Status {
	if _, exists := e.dataframes.Lookup(stmt.Name); exists && !stmt.Replace {
		return status.Errorf(status.DuplicateDefinition, "table %s already exists", stmt.Name)
	}
	prepared, s := e.wrapper.Prepare(stmt.Body)
	if !s.Ok() {
		return s
	}
	defer prepared.Close()

	table, s := buildTableFromQuery(e.pool, prepared, stmt.DeclaredSchema)
	if !s.Ok() {
		return s
	}

	if stmt.Replace {
		e.dataframes.Drop(stmt.Name)
	}
	e.dataframes.BeginCreate(stmt.Name, table)
	if stmt.Replace {
		if s := e.wrapper.Exec(context.Background(), "DROP TABLE IF EXISTS "+stmt.Name); !s.Ok() {
			e.dataframes.AbandonCreate()
			return s
		}
	}
	createSQL := fmt.Sprintf("CREATE VIRTUAL TABLE %s USING __intrinsic_dataframe()", stmt.Name)
	if s := e.wrapper.Exec(context.Background(), createSQL); !s.Ok() {
		e.dataframes.AbandonCreate()
		return s
	}
	return status.OK()
}

func (e *Engine) createView(stmt *sqlparse.Statement) status.Status {
	prepared, s := e.wrapper.Prepare(stmt.Body)
	if !s.Ok() {
		return s
	}
	defer prepared.Close()

	n := prepared.ColumnCount()
	colNames := make([]string, n)
	for i := 0; i < n; i++ {
		colNames[i] = prepared.ColumnName(i)
	}
	if _, s := validateSchema(colNames, stmt.DeclaredSchema); !s.Ok() {
		return s
	}
	if e.strictViewChecks {
		if _, s := buildTableFromQuery(e.pool, prepared, stmt.DeclaredSchema); !s.Ok() {
			return s
		}
	}

	ctx := context.Background()
	if stmt.Replace {
		if s := e.wrapper.Exec(ctx, "DROP VIEW IF EXISTS "+stmt.Name); !s.Ok() {
			return s
		}
	}
	return e.wrapper.Exec(ctx, "CREATE VIEW "+stmt.Name+" AS "+stmt.Body)
}

func (e *Engine) createFunction(stmt *sqlparse.Statement) status.Status {
	if stmt.AliasTarget != "" {
		target, s := e.lookupAliasTarget(stmt.AliasTarget)
		if !s.Ok() {
			return s
		}
		alias := &ScalarFunctionDef{
			Name:       stmt.FuncName,
			Args:       target.Args,
			ReturnType: target.ReturnType,
			Body:       target.Body,
		}
		return e.registerScalarFunction(alias, stmt.Replace)
	}

	if stmt.ReturnTable != nil {
		cols := make([]tablefn.ArgSpec, len(stmt.ReturnTable))
		for i, c := range stmt.ReturnTable {
			if _, s := columnTypeOf(c.Type, true); !s.Ok() {
				return status.Errorf(status.SchemaMismatch, "function %s: return column %s: %s", stmt.FuncName, c.Name, s.Message())
			}
			cols[i] = tablefn.ArgSpec{Name: c.Name, Type: c.Type}
		}
		argDefs, s := parseScalarArgs(stmt.FuncArgs)
		if !s.Ok() {
			return s
		}
		args := make([]tablefn.ArgSpec, len(argDefs))
		for i, a := range argDefs {
			args[i] = tablefn.ArgSpec{Name: a.Name, Type: a.Type}
		}
		def := &tablefn.Definition{Name: stmt.FuncName, Args: args, Columns: cols, Body: stmt.Body}
		if s := tablefn.Validate(def); !s.Ok() {
			return s
		}
		return e.registerTableFunction(def, stmt.Replace)
	}

	args, s := parseScalarArgs(stmt.FuncArgs)
	if !s.Ok() {
		return s
	}
	if _, s := columnTypeOf(stmt.ReturnScalar, true); !s.Ok() {
		return status.Errorf(status.SchemaMismatch, "function %s: return type: %s", stmt.FuncName, s.Message())
	}
	def := &ScalarFunctionDef{Name: stmt.FuncName, Args: args, ReturnType: stmt.ReturnScalar, Body: stmt.Body}
	return e.registerScalarFunction(def, stmt.Replace)
}

func (e *Engine) createMacro(stmt *sqlparse.Statement) status.Status {
	for _, a := range stmt.MacroArgs {
		if !sqlparse.IsValidMacroArgCategory(a.Type) {
			return status.Errorf(status.MacroError, "macro %s: argument %s has an unrecognized category %q", stmt.MacroName, a.Name, a.Type)
		}
	}
	if !sqlparse.IsValidMacroArgCategory(stmt.MacroReturnType) {
		return status.Errorf(status.MacroError, "macro %s: return type %q is not a recognized category", stmt.MacroName, stmt.MacroReturnType)
	}
	return e.macros.Define(stmt.MacroName, sqlparse.MacroDef{
		Args:       stmt.MacroArgs,
		ReturnType: stmt.MacroReturnType,
		Body:       stmt.Body,
	}, stmt.Replace)
}

func (e *Engine) createIndex(stmt *sqlparse.Statement) status.Status {
	st, ok := e.dataframes.Lookup(stmt.TableName)
	if !ok {
		return status.Errorf(status.UnknownModule, "table %s does not exist", stmt.TableName)
	}
	colIdxs := make([]int, len(stmt.ColumnNames))
	for i, name := range stmt.ColumnNames {
		idx, ok := st.Table.ColumnIndex(name)
		if !ok {
			return status.Errorf(status.SchemaMismatch, "index %s: column %s does not exist on table %s", stmt.IndexName, name, stmt.TableName)
		}
		colIdxs[i] = idx
	}
	return dataframe.BuildIndex(st, stmt.IndexName, colIdxs, stmt.Replace)
}

func (e *Engine) dropIndex(stmt *sqlparse.Statement) status.Status {
	st, ok := e.dataframes.FindIndexTable(stmt.IndexName)
	if !ok {
		return status.Errorf(status.UnknownIndex, "index %s does not exist", stmt.IndexName)
	}
	return dataframe.DropIndex(st, stmt.IndexName)
}
