package perfettosql

import (
	"context"
	"errors"
	"strings"

	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/sqlparse"
	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/tablefn"
)

// ScalarFunctionDef is a registered CREATE PERFETTO FUNCTION scalar
// definition. Arg names are stored without their leading "$".
type ScalarFunctionDef struct {
	Name       string
	Args       []sqlparse.ArgumentDefinition
	ReturnType string
	Body       string
}

// functionRegistry owns every scalar and table-valued function
// definition the engine has registered, plus which names have already
// been handed to the underlying SQLite connection (a definition may be
// replaced many times over its registration's lifetime, but the
// connection only needs to learn the name once — see createFunction).
type functionRegistry struct {
	scalar           map[string]*ScalarFunctionDef
	scalarRegistered map[string]bool

	table map[string]*tablefn.Definition
}

func newFunctionRegistry() *functionRegistry {
	return &functionRegistry{
		scalar:           make(map[string]*ScalarFunctionDef),
		scalarRegistered: make(map[string]bool),
		table:            make(map[string]*tablefn.Definition),
	}
}

// registerScalarFunction installs or replaces a scalar definition. The
// SQLite-level function is registered only the first time a given name
// is seen; the closure it installs always reads the current definition
// out of the registry by name, so a later OR REPLACE takes effect
// without re-registering anything with the connection.
func (e *Engine) registerScalarFunction(def *ScalarFunctionDef, replace bool) status.Status {
	if _, exists := e.funcs.scalar[def.Name]; exists && !replace {
		return status.Errorf(status.DuplicateDefinition, "function %s already exists", def.Name)
	}
	e.funcs.scalar[def.Name] = def
	if !e.funcs.scalarRegistered[def.Name] {
		fn := e.makeScalarFn(def.Name)
		if s := e.wrapper.RegisterScalarFunction(def.Name, len(def.Args), fn, nil, true); !s.Ok() {
			delete(e.funcs.scalar, def.Name)
			return s
		}
		e.funcs.scalarRegistered[def.Name] = true
	}
	return status.OK()
}

// makeScalarFn builds the variadic go-sqlite3 function value bound to
// name; it re-enters the engine's wrapper to evaluate the function
// body on every call (§4.6 "registers a runtime scalar function").
func (e *Engine) makeScalarFn(name string) interface{} {
	return func(args ...interface{}) (interface{}, error) {
		def, ok := e.funcs.scalar[name]
		if !ok {
			return nil, errors.New("function " + name + " is no longer defined")
		}
		stmt, s := e.wrapper.Prepare(def.Body)
		if !s.Ok() {
			return nil, errors.New(s.Message())
		}
		defer stmt.Close()
		for i, a := range def.Args {
			if i < len(args) {
				bindScalarArg(stmt, a.Name, args[i])
			}
		}
		res, s := stmt.Step(context.Background())
		if !s.Ok() {
			return nil, errors.New(s.Message())
		}
		if res != engine.StepRow {
			return nil, nil
		}
		return stmt.ColumnValue(0), nil
	}
}

func bindScalarArg(stmt *engine.PreparedStatement, name string, v interface{}) {
	switch x := v.(type) {
	case int64:
		stmt.BindInt64(name, x)
	case float64:
		stmt.BindFloat64(name, x)
	case string:
		stmt.BindText(name, x)
	case []byte:
		stmt.BindText(name, string(x))
	default:
		stmt.BindNull(name)
	}
}

// registerTableFunction installs or replaces a table-valued function
// definition. The underlying eponymous virtual-table module is
// registered only the first time a given name is seen; a later OR
// REPLACE mutates the existing Definition's fields in place (including
// dropping any cached prepared statement) since the module instance
// already bound to that name keeps a pointer to it.
func (e *Engine) registerTableFunction(def *tablefn.Definition, replace bool) status.Status {
	if existing, exists := e.funcs.table[def.Name]; exists {
		if !replace {
			return status.Errorf(status.DuplicateDefinition, "function %s already exists", def.Name)
		}
		*existing = *def
		return status.OK()
	}
	e.funcs.table[def.Name] = def
	mod := &tablefn.Module{Def: def, Eng: e.wrapper}
	if s := e.wrapper.RegisterVirtualTableModule(def.Name, mod); !s.Ok() {
		delete(e.funcs.table, def.Name)
		return s
	}
	return status.OK()
}

// lookupAliasTarget resolves the USING <existing_function> clause of a
// CREATE PERFETTO FUNCTION alias against previously-registered scalar
// functions (§4.6 "looks up the target function in the intrinsic-
// function registry").
func (e *Engine) lookupAliasTarget(name string) (*ScalarFunctionDef, status.Status) {
	def, ok := e.funcs.scalar[name]
	if !ok {
		return nil, status.Errorf(status.UnknownFunction, "function %s is not defined, cannot be aliased", name)
	}
	return def, status.OK()
}

// parseScalarArgs validates and strips the required "$" prefix off
// every scalar function argument name (§4.6 "Arguments must be declared
// with $-prefix names; : and @ are rejected").
func parseScalarArgs(args []sqlparse.ArgumentDefinition) ([]sqlparse.ArgumentDefinition, status.Status) {
	out := make([]sqlparse.ArgumentDefinition, len(args))
	for i, a := range args {
		if strings.HasPrefix(a.Name, ":") || strings.HasPrefix(a.Name, "@") {
			return nil, status.Errorf(status.BadArgument, "argument %s: use $-prefixed names, not : or @", a.Name)
		}
		if !strings.HasPrefix(a.Name, "$") {
			return nil, status.Errorf(status.BadArgument, "argument %s must be declared with a $-prefixed name", a.Name)
		}
		out[i] = sqlparse.ArgumentDefinition{Name: strings.TrimPrefix(a.Name, "$"), Type: a.Type}
	}
	return out, status.OK()
}
