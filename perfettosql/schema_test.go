package perfettosql

import (
	"testing"

	"github.com/k0kubun/perfettosql/sqlparse"
	"github.com/k0kubun/perfettosql/status"
)

func TestValidateSchemaNoDeclared(t *testing.T) {
	ordered, s := validateSchema([]string{"a", "b"}, nil)
	if !s.Ok() || ordered != nil {
		t.Fatalf("expected ok with nil ordered schema, got %v %v", ordered, s.Message())
	}
}

func TestValidateSchemaDuplicateActual(t *testing.T) {
	_, s := validateSchema([]string{"a", "a"}, nil)
	if s.Ok() || s.Kind() != status.SchemaMismatch {
		t.Fatalf("expected SchemaMismatch for duplicate column, got %v", s)
	}
}

func TestValidateSchemaMismatchBothDirections(t *testing.T) {
	declared := []sqlparse.ArgumentDefinition{{Name: "x", Type: "LONG"}, {Name: "y", Type: "LONG"}}
	_, s := validateSchema([]string{"x", "z"}, declared)
	if s.Ok() {
		t.Fatalf("expected mismatch error")
	}
	msg := s.Message()
	if !contains(msg, "declared in the schema, but do not exist: y") || !contains(msg, "exist, but are not declared: z") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestValidateSchemaOrdersToActual(t *testing.T) {
	declared := []sqlparse.ArgumentDefinition{{Name: "b", Type: "LONG"}, {Name: "a", Type: "STRING"}}
	ordered, s := validateSchema([]string{"a", "b"}, declared)
	if !s.Ok() {
		t.Fatalf("unexpected error: %v", s.Message())
	}
	if ordered[0].Name != "a" || ordered[1].Name != "b" {
		t.Fatalf("expected schema reordered to actual column order, got %+v", ordered)
	}
}

func TestValidColumnName(t *testing.T) {
	cases := map[string]bool{"a": true, "_x": true, "a1": true, "1a": false, "": false, "a-b": false}
	for name, want := range cases {
		if got := validColumnName(name); got != want {
			t.Errorf("validColumnName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestColumnTypeOf(t *testing.T) {
	if _, s := columnTypeOf("ANY", true); s.Ok() {
		t.Fatalf("expected ANY to be rejected")
	}
	if _, s := columnTypeOf("BYTES", false); s.Ok() {
		t.Fatalf("expected BYTES to be rejected without legacy support")
	}
	if _, s := columnTypeOf("BYTES", true); !s.Ok() {
		t.Fatalf("expected BYTES to be accepted with legacy support")
	}
}

func contains(s, substr string) bool {
	return indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
