// Package tablefn implements the runtime table-valued function virtual
// table module (C7, §4.7): a CREATE PERFETTO FUNCTION ... RETURNS
// TABLE(...) definition is registered as its own eponymous SQLite module,
// so that `FROM fn(a, b)` resolves by binding a, b onto the function's
// declared arguments as hidden equality-constrained columns.
package tablefn

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/status"
)

// ArgSpec is a single declared name/type pair, shared by a function's
// argument list and its RETURNS TABLE column list.
type ArgSpec struct {
	Name string
	Type string
}

// Definition is everything the module needs to serve one runtime
// table-valued function.
type Definition struct {
	Name    string
	Args    []ArgSpec
	Columns []ArgSpec
	Body    string // references $<arg> bind parameters

	// stmt is the reusable prepared-statement slot (§4.7): the body is
	// compiled once and Reset/re-bound on every Filter, rather than
	// re-prepared per query, since the engine is single-threaded and
	// cooperative and there is never more than one open cursor per
	// function at a time in practice.
	stmt *engine.PreparedStatement
}

const primaryKeyColumn = "_primary_key"

func inColumnName(arg string) string { return "in_" + arg }

// Module implements sqlite3.Module for one Definition.
type Module struct {
	Def *Definition
	Eng *engine.Wrapper
}

func (m *Module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	if err := c.DeclareVTab(declareSQL(m.Def)); err != nil {
		return nil, err
	}
	return &vtab{def: m.Def, eng: m.Eng}, nil
}

func (m *Module) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Create(c, args)
}

func (m *Module) DestroyModule() {}

func declareSQL(d *Definition) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE x(")
	for i, col := range d.Columns {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(col.Name)
		b.WriteString(" ")
		b.WriteString(sqlTypeOf(col.Type))
	}
	for _, a := range d.Args {
		b.WriteString(",")
		b.WriteString(inColumnName(a.Name))
		b.WriteString(" HIDDEN")
	}
	b.WriteString(",")
	b.WriteString(primaryKeyColumn)
	b.WriteString(" HIDDEN)")
	return b.String()
}

func sqlTypeOf(t string) string {
	switch strings.ToUpper(t) {
	case "LONG", "BOOL":
		return "INTEGER"
	case "DOUBLE":
		return "REAL"
	case "STRING":
		return "TEXT"
	default:
		return ""
	}
}

type vtab struct {
	def *Definition
	eng *engine.Wrapper
}

// BestIndex requires exactly one usable equality constraint per declared
// argument, since a table-valued function call binds every argument
// positionally; a query that omits one is rejected at plan time.
func (v *vtab) BestIndex(cst []sqlite3.InfoConstraint, _ []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	numOutput := len(v.def.Columns)
	argPos := make([]int, len(v.def.Args)) // constraint index bound to each arg, or -1
	for i := range argPos {
		argPos[i] = -1
	}
	used := make([]bool, len(cst))
	argNum := 1
	idxParts := make([]string, len(v.def.Args))
	for i, arg := range v.def.Args {
		hiddenCol := numOutput + i
		found := -1
		for ci, c := range cst {
			if c.Column == hiddenCol && c.Op == sqlite3.OpEQ && c.Usable {
				found = ci
				break
			}
		}
		if found == -1 {
			return nil, fmt.Errorf("table function %s: argument %s must be bound by an equality constraint", v.def.Name, arg.Name)
		}
		used[found] = true
		idxParts[i] = strconv.Itoa(argNum)
		argNum++
	}
	return &sqlite3.IndexResult{
		Used:          used,
		IdxNum:        0,
		IdxStr:        strings.Join(idxParts, ","),
		EstimatedCost: 1,
		EstimatedRows: 1000,
	}, nil
}

func (v *vtab) Open() (sqlite3.VTabCursor, error) {
	return &cursor{def: v.def, eng: v.eng}, nil
}

func (v *vtab) Disconnect() error { return nil }
func (v *vtab) Destroy() error    { return nil }

type cursor struct {
	def *Definition
	eng *engine.Wrapper

	row    int64
	result engine.StepResult
}

func (c *cursor) Filter(idxNum int, idxStr string, vals []interface{}) error {
	if c.def.stmt == nil {
		stmt, s := c.eng.Prepare(c.def.Body)
		if !s.Ok() {
			return fmt.Errorf("preparing table function %s: %s", c.def.Name, s.Message())
		}
		c.def.stmt = stmt
	} else {
		c.def.stmt.Reset()
	}
	for i, arg := range c.def.Args {
		if i >= len(vals) {
			return fmt.Errorf("table function %s: missing value for argument %s", c.def.Name, arg.Name)
		}
		bindArg(c.def.stmt, arg.Name, vals[i])
	}
	c.row = 0
	res, s := c.def.stmt.Step(context.Background())
	if !s.Ok() {
		return fmt.Errorf("%s", s.Message())
	}
	c.result = res
	return nil
}

func bindArg(stmt *engine.PreparedStatement, name string, v interface{}) {
	switch x := v.(type) {
	case int64:
		stmt.BindInt64(name, x)
	case float64:
		stmt.BindFloat64(name, x)
	case string:
		stmt.BindText(name, x)
	case []byte:
		stmt.BindText(name, string(x))
	case nil:
		stmt.BindNull(name)
	default:
		stmt.BindNull(name)
	}
}

func (c *cursor) Next() error {
	c.row++
	res, s := c.def.stmt.Step(context.Background())
	if !s.Ok() {
		return fmt.Errorf("%s", s.Message())
	}
	c.result = res
	return nil
}

func (c *cursor) EOF() bool {
	return c.result == engine.StepDone
}

func (c *cursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	numOutput := len(c.def.Columns)
	if col >= numOutput {
		if col == numOutput+len(c.def.Args) {
			ctx.ResultInt64(c.row)
			return nil
		}
		// hidden in_<arg> columns read back as NULL.
		ctx.ResultNull()
		return nil
	}
	if c.def.stmt.ColumnIsNull(col) {
		ctx.ResultNull()
		return nil
	}
	switch sqlTypeOf(c.def.Columns[col].Type) {
	case "INTEGER":
		v, _ := c.def.stmt.ColumnInt64(col)
		ctx.ResultInt64(v)
	case "REAL":
		v, _ := c.def.stmt.ColumnDouble(col)
		ctx.ResultDouble(v)
	default:
		v, _ := c.def.stmt.ColumnText(col)
		ctx.ResultText(v)
	}
	return nil
}

func (c *cursor) Rowid() (int64, error) {
	return c.row, nil
}

func (c *cursor) Close() error {
	return nil
}

// Validate checks a definition's argument types against the closed type
// vocabulary (§4.6 schema validation table), returning a BadArgument
// status naming every offending argument. Column types are not checked
// here.
func Validate(d *Definition) status.Status {
	var bad []string
	for _, a := range d.Args {
		if sqlTypeOf(a.Type) == "" {
			bad = append(bad, a.Name)
		}
	}
	if len(bad) > 0 {
		return status.Errorf(status.BadArgument, "unknown argument type(s): %s", strings.Join(bad, ", "))
	}
	return status.OK()
}
