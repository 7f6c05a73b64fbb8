package perfettosql

import (
	"context"
	"testing"

	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/status"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	w, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("opening engine: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	e, s := NewEngine(w, NewModuleRegistry())
	if !s.Ok() {
		t.Fatalf("constructing engine: %v", s.Message())
	}
	return e
}

func TestExecuteSimpleSelect(t *testing.T) {
	e := newTestEngine(t)
	stats, s := e.Execute("SELECT 1")
	if !s.Ok() {
		t.Fatalf("unexpected error: %v", s.Message())
	}
	if stats.Statements != 1 {
		t.Fatalf("expected 1 statement, got %d", stats.Statements)
	}
}

func TestExecuteEmptySourceErrors(t *testing.T) {
	e := newTestEngine(t)
	_, s := e.Execute("   ")
	if s.Ok() || s.Kind() != status.ParseError {
		t.Fatalf("expected ParseError for empty source, got %v", s)
	}
}

func TestExecuteUntilLastStatementReturnsSteppedStatement(t *testing.T) {
	e := newTestEngine(t)
	stmt, stats, s := e.ExecuteUntilLastStatement("SELECT 1; SELECT 2 + 3")
	if !s.Ok() {
		t.Fatalf("unexpected error: %v", s.Message())
	}
	defer stmt.Close()
	if stats.Statements != 2 {
		t.Fatalf("expected 2 statements, got %d", stats.Statements)
	}
	v, ok := stmt.ColumnInt64(0)
	if !ok || v != 5 {
		t.Fatalf("expected last statement's first row = 5, got %v ok=%v", v, ok)
	}
}

func TestCreatePerfettoTableAndQuery(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("CREATE PERFETTO TABLE t AS SELECT 1 AS x UNION ALL SELECT 2 AS x"); !s.Ok() {
		t.Fatalf("create table: %v", s.Message())
	}
	stmt, _, s := e.ExecuteUntilLastStatement("SELECT SUM(x) FROM t")
	if !s.Ok() {
		t.Fatalf("query: %v", s.Message())
	}
	defer stmt.Close()
	v, ok := stmt.ColumnInt64(0)
	if !ok || v != 3 {
		t.Fatalf("expected sum 3, got %v ok=%v", v, ok)
	}
}

func TestCreatePerfettoTableDuplicateWithoutReplace(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("CREATE PERFETTO TABLE t AS SELECT 1 AS x"); !s.Ok() {
		t.Fatalf("unexpected error: %v", s.Message())
	}
	if _, s := e.Execute("CREATE PERFETTO TABLE t AS SELECT 2 AS x"); s.Ok() || s.Kind() != status.DuplicateDefinition {
		t.Fatalf("expected DuplicateDefinition, got %v", s)
	}
	if _, s := e.Execute("CREATE OR REPLACE PERFETTO TABLE t AS SELECT 2 AS x"); !s.Ok() {
		t.Fatalf("expected OR REPLACE to succeed, got %v", s.Message())
	}
}

func TestRollbackHookClearsDataframeHandoff(t *testing.T) {
	e := newTestEngine(t)

	b := coltable.NewBuilder(e.pool, []string{"x"}, nil)
	b.AppendInt(0, 1)
	table := b.Finalize(1)
	e.dataframes.BeginCreate("leftover", table)

	_, rollback, begin := e.wrapper.Savepoint(context.Background(), "sp_test")
	if !begin.Ok() {
		t.Fatalf("savepoint: %v", begin.Message())
	}
	if s := rollback(); !s.Ok() {
		t.Fatalf("rollback to savepoint: %v", s.Message())
	}

	if _, ok := e.dataframes.Lookup("leftover"); ok {
		t.Fatalf("leftover should never have been committed into the registry")
	}
	// The rollback hook must have cleared the handoff slot; otherwise the
	// next BeginCreate would hit its fatal non-empty-slot precondition.
	e.dataframes.BeginCreate("next", table)
}

func TestCreatePerfettoFunctionScalarAndAlias(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("CREATE PERFETTO FUNCTION double_it($x LONG) RETURNS LONG AS SELECT $x * 2"); !s.Ok() {
		t.Fatalf("create function: %v", s.Message())
	}
	stmt, _, s := e.ExecuteUntilLastStatement("SELECT double_it(21)")
	if !s.Ok() {
		t.Fatalf("query: %v", s.Message())
	}
	defer stmt.Close()
	v, ok := stmt.ColumnInt64(0)
	if !ok || v != 42 {
		t.Fatalf("expected 42, got %v ok=%v", v, ok)
	}

	if _, s := e.Execute("CREATE PERFETTO FUNCTION twice($x LONG) RETURNS LONG USING double_it"); !s.Ok() {
		t.Fatalf("create alias: %v", s.Message())
	}
	stmt2, _, s := e.ExecuteUntilLastStatement("SELECT twice(10)")
	if !s.Ok() {
		t.Fatalf("alias query: %v", s.Message())
	}
	defer stmt2.Close()
	v2, ok := stmt2.ColumnInt64(0)
	if !ok || v2 != 20 {
		t.Fatalf("expected alias to return 20, got %v ok=%v", v2, ok)
	}
}

func TestCreatePerfettoFunctionRejectsBadArgPrefix(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("CREATE PERFETTO FUNCTION f(x LONG) RETURNS LONG AS SELECT x"); s.Ok() || s.Kind() != status.BadArgument {
		t.Fatalf("expected BadArgument for non-$-prefixed argument, got %v", s)
	}
}

func TestCreatePerfettoMacroRejectsUnknownCategory(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("CREATE PERFETTO MACRO m(x Bogus) RETURNS Expr AS $x"); s.Ok() || s.Kind() != status.MacroError {
		t.Fatalf("expected MacroError for unrecognized macro arg category, got %v", s)
	}
}

func TestIncludeModuleDefinesView(t *testing.T) {
	modules := NewModuleRegistry()
	modules.RegisterPackage("pkg", map[string]string{
		"pkg.mod": "CREATE PERFETTO VIEW v AS SELECT 7 AS y",
	})
	w, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("opening engine: %v", err)
	}
	defer w.Close()
	e, s := NewEngine(w, modules)
	if !s.Ok() {
		t.Fatalf("constructing engine: %v", s.Message())
	}
	if _, s := e.Execute("INCLUDE PERFETTO MODULE pkg.mod"); !s.Ok() {
		t.Fatalf("include: %v", s.Message())
	}
	stmt, _, s := e.ExecuteUntilLastStatement("SELECT y FROM v")
	if !s.Ok() {
		t.Fatalf("query: %v", s.Message())
	}
	defer stmt.Close()
	v, ok := stmt.ColumnInt64(0)
	if !ok || v != 7 {
		t.Fatalf("expected 7, got %v ok=%v", v, ok)
	}
}

func TestIncludeModuleRejectsQueryingModule(t *testing.T) {
	modules := NewModuleRegistry()
	modules.RegisterPackage("pkg", map[string]string{
		"pkg.mod": "SELECT 1",
	})
	e := newTestEngineWithModules(t, modules)
	if _, s := e.Execute("INCLUDE PERFETTO MODULE pkg.mod"); s.Ok() || s.Kind() != status.SchemaMismatch {
		t.Fatalf("expected modules that emit rows to be rejected, got %v", s)
	}
}

func TestIncludeCommonRejected(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("INCLUDE PERFETTO MODULE common.foo"); s.Ok() || s.Kind() != status.UnknownModule {
		t.Fatalf("expected common.* include to fail, got %v", s)
	}
}

func TestCreateAndDropPerfettoIndex(t *testing.T) {
	e := newTestEngine(t)
	if _, s := e.Execute("CREATE PERFETTO TABLE t AS SELECT 1 AS x"); !s.Ok() {
		t.Fatalf("create table: %v", s.Message())
	}
	if _, s := e.Execute("CREATE PERFETTO INDEX idx ON t(x)"); !s.Ok() {
		t.Fatalf("create index: %v", s.Message())
	}
	if _, s := e.Execute("CREATE PERFETTO INDEX idx ON t(x)"); s.Ok() || s.Kind() != status.DuplicateDefinition {
		t.Fatalf("expected DuplicateDefinition re-creating index, got %v", s)
	}
	if _, s := e.Execute("DROP PERFETTO INDEX idx ON t"); !s.Ok() {
		t.Fatalf("drop index: %v", s.Message())
	}
	if _, s := e.Execute("DROP PERFETTO INDEX idx ON t"); s.Ok() || s.Kind() != status.UnknownIndex {
		t.Fatalf("expected UnknownIndex on double drop, got %v", s)
	}
}

func newTestEngineWithModules(t *testing.T, modules *ModuleRegistry) *Engine {
	t.Helper()
	w, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("opening engine: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	e, s := NewEngine(w, modules)
	if !s.Ok() {
		t.Fatalf("constructing engine: %v", s.Message())
	}
	return e
}
