package coltable

import (
	"testing"

	"github.com/k0kubun/perfettosql/pool"
)

// Scenario 1 from spec §8: append_float then append_int(2^53) succeeds.
func TestDoubleThenIntegerCoercion(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)

	if s := b.AppendFloat(0, 1024.3); !s.Ok() {
		t.Fatalf("append_float failed: %v", s.Message())
	}
	if s := b.AppendInt(0, int64(1)<<53); !s.Ok() {
		t.Fatalf("append_int failed: %v", s.Message())
	}

	table := b.Finalize(2)
	v0, ok := table.Float(0, 0)
	if !ok || v0 != 1024.3 {
		t.Fatalf("row 0 mismatch: %v ok=%v", v0, ok)
	}
	v1, ok := table.Float(0, 1)
	if !ok || v1 != float64(int64(1)<<53) {
		t.Fatalf("row 1 mismatch: %v ok=%v", v1, ok)
	}
}

// Scenario 2 from spec §8: integer outside double range fails.
func TestIntegerOutsideDoubleRange(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)

	if s := b.AppendFloat(0, 1.0); !s.Ok() {
		t.Fatalf("append_float failed: %v", s.Message())
	}
	s := b.AppendInt(0, (int64(1)<<53)+1)
	if s.Ok() {
		t.Fatalf("expected TypeCoercion error")
	}
	if s.Kind().String() != "type coercion" {
		t.Fatalf("expected TypeCoercion kind, got %v", s.Kind())
	}
}

func TestIntToFloatPromotionInPlace(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)

	must(t, b.AppendInt(0, 1))
	must(t, b.AppendInt(0, 2))
	must(t, b.AppendFloat(0, 3.5))

	table := b.Finalize(3)
	if table.ColumnType(0) != ColumnFloat {
		t.Fatalf("expected column promoted to float")
	}
	for row, want := range []float64{1, 2, 3.5} {
		got, ok := table.Float(0, row)
		if !ok || got != want {
			t.Fatalf("row %d: got %v want %v", row, got, want)
		}
	}
}

func TestFloatDoesNotDemoteToInt(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)
	must(t, b.AppendFloat(0, 1.5))
	s := b.AppendInt(0, 2)
	if !s.Ok() {
		t.Fatalf("unexpected error appending representable int to float column: %v", s.Message())
	}
	table := b.Finalize(2)
	if table.ColumnType(0) != ColumnFloat {
		t.Fatalf("a float column must never demote to int")
	}
}

func TestMixingTextWithNumericFails(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)
	must(t, b.AppendInt(0, 1))
	s := b.AppendText(0, "x")
	if s.Ok() {
		t.Fatalf("expected TypeCoercion mixing text into int column")
	}
}

func TestLeadingNullsPromoteOnFirstNonNull(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)
	must(t, b.AppendNull(0))
	must(t, b.AppendNull(0))
	must(t, b.AppendText(0, "hi"))

	table := b.Finalize(3)
	if table.ColumnType(0) != ColumnText {
		t.Fatalf("expected column promoted to text")
	}
	for row := 0; row < 2; row++ {
		if !table.IsNull(0, row) {
			t.Fatalf("row %d expected null", row)
		}
	}
	s, ok := table.Text(0, 2)
	if !ok || s != "hi" {
		t.Fatalf("row 2 mismatch: %q ok=%v", s, ok)
	}
}

func TestFinalizeStillAllLeadingNullsPromotesToInt(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)
	must(t, b.AppendNull(0))
	must(t, b.AppendNull(0))

	table := b.Finalize(2)
	if table.ColumnType(0) != ColumnInt {
		t.Fatalf("expected all-null column to finalize as int")
	}
	if !table.IsNull(0, 0) || !table.IsNull(0, 1) {
		t.Fatalf("expected both rows null")
	}
}

func TestFinalizeLengthMismatchPanics(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"col"}, nil)
	must(t, b.AppendInt(0, 1))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on row-count mismatch")
		}
	}()
	b.Finalize(5)
}

func TestAutoIDColumn(t *testing.T) {
	p := pool.New()
	b := NewBuilder(p, []string{"a"}, nil)
	must(t, b.AppendInt(0, 10))
	must(t, b.AppendInt(0, 20))
	table := b.Finalize(2)
	if table.AutoID(0) != 0 || table.AutoID(1) != 1 {
		t.Fatalf("expected auto id to equal row ordinal")
	}
}

func must(t *testing.T, s interface{ Ok() bool }) {
	t.Helper()
	type messager interface{ Message() string }
	if !s.Ok() {
		msg := ""
		if m, ok := s.(messager); ok {
			msg = m.Message()
		}
		t.Fatalf("unexpected error: %v", msg)
	}
}
