package rollup

import (
	"context"
	"testing"

	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/value"
)

func TestTreeInsertRowBuildsHierarchy(t *testing.T) {
	tree := NewTree(2, 1)
	p := pool.New()
	a := value.TextValue(p.Intern("a"))
	b := value.TextValue(p.Intern("b"))

	tree.InsertRow(-1, nil, []value.Value{value.IntValue(10)})
	tree.InsertRow(0, []value.Value{a, value.NullValue()}, []value.Value{value.IntValue(4)})
	tree.InsertRow(1, []value.Value{a, b}, []value.Value{value.IntValue(4)})

	if got := tree.Root.Agg[0].Int(); got != 10 {
		t.Fatalf("root agg = %d, want 10", got)
	}
	if len(tree.Root.Children) != 1 {
		t.Fatalf("expected 1 child of root, got %d", len(tree.Root.Children))
	}
	child := tree.Root.Children[0]
	if child.Depth != 1 || !sameValue(child.Values[0], a) {
		t.Fatalf("unexpected child: %+v", child)
	}
	if len(child.Children) != 1 || child.Children[0].Depth != 2 {
		t.Fatalf("expected grandchild at depth 2")
	}
}

func TestTreeLazilySynthesizesIntermediateNodes(t *testing.T) {
	tree := NewTree(2, 1)
	p := pool.New()
	a := value.TextValue(p.Intern("a"))
	b := value.TextValue(p.Intern("b"))
	// Insert only the depth-2 row; the depth-1 ancestor must be created
	// lazily with null aggregates.
	tree.InsertRow(1, []value.Value{a, b}, []value.Value{value.IntValue(1)})

	if len(tree.Root.Children) != 1 {
		t.Fatalf("expected synthesized depth-1 ancestor")
	}
	ancestor := tree.Root.Children[0]
	if !ancestor.Agg[0].IsNull() {
		t.Fatalf("synthesized ancestor should have null aggregates")
	}
}

func TestParseSort(t *testing.T) {
	cases := map[string]Spec{
		"":                  {Kind: sortAlphabetic},
		"__group_1 DESC":    {Kind: sortGroup, Level: 1, Desc: true},
		"__agg_0":           {Kind: sortAgg, Agg: 0},
		"some_column":       {Kind: sortAlphabetic},
		"__group_0":         {Kind: sortGroup, Level: 0},
	}
	for in, want := range cases {
		got := ParseSort(in)
		if got != want {
			t.Fatalf("ParseSort(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestSortTreeAlphabetic(t *testing.T) {
	tree := NewTree(1, 1)
	p := pool.New()
	b := value.TextValue(p.Intern("b"))
	a := value.TextValue(p.Intern("a"))
	tree.InsertRow(0, []value.Value{b}, []value.Value{value.IntValue(1)})
	tree.InsertRow(0, []value.Value{a}, []value.Value{value.IntValue(2)})

	SortTree(tree, ParseSort(""), p)
	if valueToString(p, tree.Root.Children[0].Values[0]) != "a" {
		t.Fatalf("expected alphabetic sort to put 'a' first")
	}
}

func TestFlattenExpandCollapseDefaults(t *testing.T) {
	tree := NewTree(1, 1)
	p := pool.New()
	tree.InsertRow(0, []value.Value{value.TextValue(p.Intern("x"))}, []value.Value{value.IntValue(1)})

	rows := flatten(tree, map[int64]bool{}, true, -1, -1, 0, -1)
	if len(rows) != 2 {
		t.Fatalf("expected root+child by default (expand all), got %d", len(rows))
	}
}

func TestFlattenCollapsedIDsDenylist(t *testing.T) {
	tree := NewTree(1, 1)
	p := pool.New()
	tree.InsertRow(0, []value.Value{value.TextValue(p.Intern("x"))}, []value.Value{value.IntValue(1)})
	childID := tree.Root.Children[0].ID

	// A collapsed node is still listed; only its own children are hidden.
	rows := flatten(tree, map[int64]bool{childID: true}, true, -1, -1, 0, -1)
	if len(rows) != 2 {
		t.Fatalf("expected root and the collapsed child, got %d", len(rows))
	}
}

func TestFlattenPagination(t *testing.T) {
	tree := NewTree(1, 1)
	p := pool.New()
	for _, s := range []string{"a", "b", "c"} {
		tree.InsertRow(0, []value.Value{value.TextValue(p.Intern(s))}, []value.Value{value.IntValue(1)})
	}
	rows := flatten(tree, map[int64]bool{}, true, -1, -1, 1, 2)
	if len(rows) != 2 {
		t.Fatalf("expected limit to cap output at 2, got %d", len(rows))
	}
}

func TestCellValueCoercesBlobToNull(t *testing.T) {
	w, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	stmt, s := w.Prepare("SELECT X'0102', 42")
	if !s.Ok() {
		t.Fatalf("prepare: %v", s.Message())
	}
	defer stmt.Close()

	res, s := stmt.Step(context.Background())
	if !s.Ok() || res != engine.StepRow {
		t.Fatalf("expected a row, got %v %v", res, s.Message())
	}

	p := pool.New()
	if v := cellValue(stmt, p, 0); !v.IsNull() {
		t.Fatalf("expected a []byte cell to coerce to null, got %+v", v)
	}
	if v := cellValue(stmt, p, 1); v.IsNull() || v.Int() != 42 {
		t.Fatalf("expected the int column to pass through untouched, got %+v", v)
	}
}

func TestFilterFallsBackToInstanceDefaults(t *testing.T) {
	tree := NewTree(1, 1)
	p := pool.New()
	for _, s := range []string{"b", "a", "c"} {
		tree.InsertRow(0, []value.Value{value.TextValue(p.Intern(s))}, []value.Value{value.IntValue(1)})
	}
	inst := &Instance{Tree: tree, Pool: p, Hierarchy: []string{"k"}, AggCount: 1, DefaultLimit: 2}
	c := &cursor{inst: inst}

	// idxStr of all '-' means no hidden column was constrained by the
	// query, so __sort/__limit must fall back to the instance defaults.
	if err := c.Filter(0, "--------", nil); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(c.rows) != 2 {
		t.Fatalf("expected DefaultLimit=2 to cap rows, got %d", len(c.rows))
	}
}

func TestFilterExplicitLimitOverridesDefault(t *testing.T) {
	tree := NewTree(1, 1)
	p := pool.New()
	for _, s := range []string{"b", "a", "c"} {
		tree.InsertRow(0, []value.Value{value.TextValue(p.Intern(s))}, []value.Value{value.IntValue(1)})
	}
	inst := &Instance{Tree: tree, Pool: p, Hierarchy: []string{"k"}, AggCount: 1, DefaultLimit: 2}
	c := &cursor{inst: inst}

	hidden := hiddenColumnsRollup
	flags := make([]byte, len(hidden))
	for i := range flags {
		flags[i] = '-'
	}
	for i, h := range hidden {
		if h == "__limit" {
			flags[i] = '0'
		}
	}
	if err := c.Filter(0, string(flags), []interface{}{int64(1)}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(c.rows) != 1 {
		t.Fatalf("expected explicit __limit=1 to override DefaultLimit=2, got %d rows", len(c.rows))
	}
}

func TestBuildUnionQuery(t *testing.T) {
	q := BuildUnionQuery("t", []string{"k1", "k2"}, []string{"SUM(x)"})
	if q == "" {
		t.Fatalf("expected non-empty query")
	}
	wantParts := []string{
		"SELECT -1 AS __level, NULL, NULL, SUM(x) FROM t",
		"SELECT 0 AS __level, k1, NULL, SUM(x) FROM t GROUP BY k1",
		"SELECT 1 AS __level, k1, k2, SUM(x) FROM t GROUP BY k1, k2",
	}
	for _, part := range wantParts {
		if !contains(q, part) {
			t.Fatalf("query missing expected clause %q in:\n%s", part, q)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
