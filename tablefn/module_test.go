package tablefn

import (
	"context"
	"testing"

	"github.com/k0kubun/perfettosql/engine"
)

func TestDeclareSQL(t *testing.T) {
	def := &Definition{
		Name:    "slice",
		Args:    []ArgSpec{{Name: "ts", Type: "LONG"}},
		Columns: []ArgSpec{{Name: "id", Type: "LONG"}, {Name: "name", Type: "STRING"}},
	}
	got := declareSQL(def)
	want := "CREATE TABLE x(id INTEGER,name TEXT,in_ts HIDDEN,_primary_key HIDDEN)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSQLTypeOf(t *testing.T) {
	cases := map[string]string{
		"LONG": "INTEGER", "BOOL": "INTEGER", "DOUBLE": "REAL", "STRING": "TEXT", "nonsense": "",
	}
	for in, want := range cases {
		if got := sqlTypeOf(in); got != want {
			t.Fatalf("sqlTypeOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	good := &Definition{Args: []ArgSpec{{Name: "a", Type: "LONG"}}}
	if s := Validate(good); !s.Ok() {
		t.Fatalf("expected ok, got %v", s.Message())
	}
	bad := &Definition{Args: []ArgSpec{{Name: "a", Type: "NOPE"}}}
	if s := Validate(bad); s.Ok() {
		t.Fatalf("expected BadArgument for unknown type")
	}
}

func TestInColumnName(t *testing.T) {
	if got := inColumnName("ts"); got != "in_ts" {
		t.Fatalf("got %q", got)
	}
}

func TestColumnPrimaryKeyReturnsRowOrdinal(t *testing.T) {
	w, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	def := &Definition{
		Name:    "rows_up_to",
		Args:    []ArgSpec{{Name: "n", Type: "LONG"}},
		Columns: []ArgSpec{{Name: "v", Type: "LONG"}},
		Body:    "SELECT value FROM (SELECT 1 AS value UNION ALL SELECT 2 UNION ALL SELECT 3) WHERE value <= $n",
	}
	if s := w.RegisterVirtualTableModule(def.Name, &Module{Def: def, Eng: w}); !s.Ok() {
		t.Fatalf("register: %v", s.Message())
	}

	stmt, s := w.Prepare("SELECT v, _primary_key FROM rows_up_to(3)")
	if !s.Ok() {
		t.Fatalf("prepare: %v", s.Message())
	}
	defer stmt.Close()

	var want int64
	for {
		res, s := stmt.Step(context.Background())
		if !s.Ok() {
			t.Fatalf("step: %v", s.Message())
		}
		if res == engine.StepDone {
			break
		}
		pk, _ := stmt.ColumnInt64(1)
		if pk != want {
			t.Fatalf("_primary_key = %d, want row ordinal %d", pk, want)
		}
		want++
	}
	if want != 3 {
		t.Fatalf("expected 3 rows, got %d", want)
	}
}
