package engine

import (
	"context"
	"testing"
)

func TestPrepareStepSelect(t *testing.T) {
	w, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	stmt, s := w.Prepare("SELECT 42 AS bar")
	if !s.Ok() {
		t.Fatalf("prepare: %v", s.Message())
	}
	defer stmt.Close()

	ctx := context.Background()
	res, s := stmt.Step(ctx)
	if !s.Ok() || res != StepRow {
		t.Fatalf("expected a row, got %v %v", res, s.Message())
	}
	v, ok := stmt.ColumnInt64(0)
	if !ok || v != 42 {
		t.Fatalf("expected 42, got %v ok=%v", v, ok)
	}
	res, s = stmt.Step(ctx)
	if !s.Ok() || res != StepDone {
		t.Fatalf("expected done, got %v %v", res, s.Message())
	}
}

func TestNamedBinds(t *testing.T) {
	w, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	stmt, s := w.Prepare("SELECT $x + $y AS total")
	if !s.Ok() {
		t.Fatalf("prepare: %v", s.Message())
	}
	defer stmt.Close()
	stmt.BindInt64("x", 1)
	stmt.BindInt64("y", 2)

	ctx := context.Background()
	res, s := stmt.Step(ctx)
	if !s.Ok() || res != StepRow {
		t.Fatalf("expected a row, got %v %v", res, s.Message())
	}
	v, ok := stmt.ColumnInt64(0)
	if !ok || v != 3 {
		t.Fatalf("expected 3, got %v ok=%v", v, ok)
	}
}

func TestSavepointRollback(t *testing.T) {
	w, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	ctx := context.Background()

	if s := w.Exec(ctx, "CREATE TABLE t(x INTEGER)"); !s.Ok() {
		t.Fatalf("create table: %v", s.Message())
	}

	release, rollback, begin := w.Savepoint(ctx, "sp_test")
	if !begin.Ok() {
		t.Fatalf("savepoint: %v", begin.Message())
	}
	if s := w.Exec(ctx, "INSERT INTO t VALUES (1)"); !s.Ok() {
		t.Fatalf("insert: %v", s.Message())
	}
	if s := rollback(); !s.Ok() {
		t.Fatalf("rollback: %v", s.Message())
	}
	_ = release

	stmt, s := w.Prepare("SELECT COUNT(*) FROM t")
	if !s.Ok() {
		t.Fatalf("prepare count: %v", s.Message())
	}
	defer stmt.Close()
	res, s := stmt.Step(ctx)
	if !s.Ok() || res != StepRow {
		t.Fatalf("expected row: %v %v", res, s.Message())
	}
	v, _ := stmt.ColumnInt64(0)
	if v != 0 {
		t.Fatalf("expected rollback to undo the insert, got count=%d", v)
	}
}
