package rollup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/value"
)

var hiddenColumnsRollup = []string{"__aggs", "__expanded_ids", "__collapsed_ids", "__sort", "__offset", "__limit", "__min_depth", "__max_depth"}
var hiddenColumnsPivot = []string{"__aggs", "__expanded_ids", "__collapsed_ids", "__sort", "__offset", "__limit"}

// Instance is one materialized rollup/pivot tree: the state a single
// CREATE VIRTUAL TABLE ... USING __intrinsic_rollup_tree(...) (or
// __intrinsic_pivot) owns.
type Instance struct {
	Tree      *Tree
	Pool      *pool.Pool
	Hierarchy []string
	AggCount  int
	IsPivot   bool

	// DefaultSort/DefaultLimit seed __sort/__limit when a query leaves
	// the corresponding hidden column unconstrained (config.Config's
	// default_sort/default_limit, threaded down from perfettosql.Engine).
	DefaultSort  string
	DefaultLimit int

	lastSort string // pivot lazy re-sort cache (§4.8 "Pivot variant differences")
}

func aggColumnName(isPivot bool, i int) string {
	if isPivot {
		return fmt.Sprintf("agg_%d", i)
	}
	return fmt.Sprintf("__agg_%d", i)
}

func hiddenCols(isPivot bool) []string {
	if isPivot {
		return hiddenColumnsPivot
	}
	return hiddenColumnsRollup
}

func declareSQL(inst *Instance) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE x(")
	for _, h := range inst.Hierarchy {
		b.WriteString(h + " TEXT,")
	}
	b.WriteString("__id INTEGER,__parent_id INTEGER,__depth INTEGER,__child_count INTEGER")
	if inst.IsPivot {
		b.WriteString(",__has_children INTEGER")
	}
	for i := 0; i < inst.AggCount; i++ {
		b.WriteString("," + aggColumnName(inst.IsPivot, i))
	}
	for _, h := range hiddenCols(inst.IsPivot) {
		b.WriteString("," + h + " HIDDEN")
	}
	b.WriteString(")")
	return b.String()
}

// parseCreateArgs splits the three positional, optionally single- or
// double-quoted CREATE VIRTUAL TABLE arguments (§4.8 "Creation
// parameters").
func parseCreateArgs(args []string) (source string, hierarchy []string, aggs []string, s status.Status) {
	// go-sqlite3 hands module arguments as raw text after the first two
	// (module/db/table name); for __intrinsic_rollup_tree/__intrinsic_pivot
	// these are exactly [source, hierarchy_cols, aggregations].
	if len(args) < 3 {
		return "", nil, nil, status.Errorf(status.BadArgument, "expected 3 creation arguments (source, hierarchy, aggregations), got %d", len(args))
	}
	src := unquoteArg(args[len(args)-3])
	hCols := splitCSV(unquoteArg(args[len(args)-2]))
	aggExprs := splitCSV(unquoteArg(args[len(args)-1]))
	if len(hCols) == 0 {
		return "", nil, nil, status.Errorf(status.BadArgument, "rollup/pivot requires at least one hierarchy column")
	}
	if len(aggExprs) == 0 || len(aggExprs) > 32 {
		return "", nil, nil, status.Errorf(status.BadArgument, "rollup/pivot requires between 1 and 32 aggregations, got %d", len(aggExprs))
	}
	return src, hCols, aggExprs, status.OK()
}

func unquoteArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Module implements sqlite3.Module for either variant, selected by
// IsPivot.
type Module struct {
	Eng     *engine.Wrapper
	Pool    *pool.Pool
	IsPivot bool

	// DefaultSort/DefaultLimit are copied onto every Instance this
	// module creates (config.Config's default_sort/default_limit).
	DefaultSort  string
	DefaultLimit int
}

func (m *Module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	source, hierarchy, aggs, s := parseCreateArgs(args)
	if !s.Ok() {
		return nil, s
	}
	tree := NewTree(len(hierarchy), len(aggs))
	if s := Populate(m.Eng, m.Pool, tree, source, hierarchy, aggs); !s.Ok() {
		return nil, s
	}
	inst := &Instance{
		Tree: tree, Pool: m.Pool, Hierarchy: hierarchy, AggCount: len(aggs), IsPivot: m.IsPivot,
		DefaultSort: m.DefaultSort, DefaultLimit: m.DefaultLimit,
	}
	if m.IsPivot {
		coerceToStrings(tree, m.Pool)
	}
	if err := c.DeclareVTab(declareSQL(inst)); err != nil {
		return nil, err
	}
	return &vtab{inst: inst}, nil
}

func (m *Module) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Create(c, args)
}

func (m *Module) DestroyModule() {}

// coerceToStrings rewrites every node's hierarchy and aggregate values
// to their string form, in place, per the pivot "stores values
// internally as strings" rule.
func coerceToStrings(t *Tree, p *pool.Pool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		for i, v := range n.Values {
			if v.IsNull() {
				continue
			}
			n.Values[i] = value.TextValue(p.Intern(valueToString(p, v)))
		}
		for i, v := range n.Agg {
			if v.IsNull() {
				continue
			}
			n.Agg[i] = value.TextValue(p.Intern(valueToString(p, v)))
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

type vtab struct {
	inst *Instance
}

func (v *vtab) BestIndex(cst []sqlite3.InfoConstraint, _ []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	hidden := hiddenCols(v.inst.IsPivot)
	numOutput := len(v.inst.Hierarchy) + 4 + boolToInt(v.inst.IsPivot) + v.inst.AggCount
	flags := make([]byte, len(hidden))
	for i := range flags {
		flags[i] = '-'
	}
	used := make([]bool, len(cst))
	argv := 0
	for i, c := range cst {
		if !c.Usable || c.Op != sqlite3.OpEQ {
			continue
		}
		hiddenIdx := c.Column - numOutput
		if hiddenIdx < 0 || hiddenIdx >= len(hidden) {
			continue
		}
		used[i] = true
		flags[hiddenIdx] = byte('0' + argv)
		argv++
	}
	return &sqlite3.IndexResult{
		Used:          used,
		IdxStr:        string(flags),
		EstimatedCost: float64(len(v.inst.Tree.ByID) + 1),
		EstimatedRows: float64(len(v.inst.Tree.ByID)),
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (v *vtab) Open() (sqlite3.VTabCursor, error) {
	return &cursor{inst: v.inst}, nil
}

func (v *vtab) Disconnect() error { return nil }
func (v *vtab) Destroy() error    { return nil }

type cursor struct {
	inst *Instance
	rows []*Node
	pos  int
}

func (c *cursor) Filter(idxNum int, idxStr string, vals []interface{}) error {
	hidden := hiddenCols(c.inst.IsPivot)
	flags := []byte(idxStr)
	get := func(name string) (interface{}, bool) {
		idx := -1
		for i, h := range hidden {
			if h == name {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(flags) || flags[idx] == '-' {
			return nil, false
		}
		pos := int(flags[idx] - '0')
		if pos >= len(vals) {
			return nil, false
		}
		return vals[pos], true
	}

	sortSpec := c.inst.DefaultSort
	if raw, ok := get("__sort"); ok {
		sortSpec = fmt.Sprintf("%v", raw)
	}
	if !c.inst.IsPivot || c.inst.lastSort != sortSpec {
		SortTree(c.inst.Tree, ParseSort(sortSpec), c.inst.Pool)
		c.inst.lastSort = sortSpec
	}

	expanded := map[int64]bool{}
	collapsedMode := true // default: expand all
	if raw, ok := get("__expanded_ids"); ok {
		expanded = parseIDSet(raw)
		collapsedMode = false
	}
	if raw, ok := get("__collapsed_ids"); ok {
		expanded = parseIDSet(raw)
		collapsedMode = true
	}

	minDepth, maxDepth := -1, -1
	if !c.inst.IsPivot {
		if raw, ok := get("__min_depth"); ok {
			minDepth = toInt(raw)
		}
		if raw, ok := get("__max_depth"); ok {
			maxDepth = toInt(raw)
		}
	}

	offset := 0
	if raw, ok := get("__offset"); ok {
		offset = toInt(raw)
	}
	limit := -1
	if c.inst.DefaultLimit > 0 {
		limit = c.inst.DefaultLimit
	}
	if raw, ok := get("__limit"); ok {
		limit = toInt(raw)
	}

	c.rows = flatten(c.inst.Tree, expanded, collapsedMode, minDepth, maxDepth, offset, limit)
	c.pos = 0
	return nil
}

func parseIDSet(raw interface{}) map[int64]bool {
	s := fmt.Sprintf("%v", raw)
	out := map[int64]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out[id] = true
		}
	}
	return out
}

func toInt(raw interface{}) int {
	switch v := raw.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return -1
	}
}

// flatten produces the depth-first, expand/collapse- and depth-filtered,
// paginated row sequence the cursor serves (§4.8 "Expand/collapse",
// "Pagination and depth filter").
func flatten(t *Tree, expanded map[int64]bool, collapsedMode bool, minDepth, maxDepth, offset, limit int) []*Node {
	var out []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		include := true
		if minDepth >= 0 && n.Depth < minDepth {
			include = false
		}
		if maxDepth >= 0 && n.Depth > maxDepth {
			include = false
		}
		if include {
			out = append(out, n)
		}
		isExpanded := n.Depth == 0
		if !isExpanded {
			if collapsedMode {
				isExpanded = !expanded[n.ID]
			} else {
				isExpanded = expanded[n.ID]
			}
		}
		if isExpanded {
			for _, c := range n.Children {
				visit(c)
			}
		}
	}
	visit(t.Root)

	if offset > 0 {
		if offset >= len(out) {
			return nil
		}
		out = out[offset:]
	}
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (c *cursor) Next() error {
	c.pos++
	return nil
}

func (c *cursor) EOF() bool {
	return c.pos >= len(c.rows)
}

func (c *cursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	n := c.rows[c.pos]
	d := len(c.inst.Hierarchy)
	switch {
	case col < d:
		resultValue(ctx, n.Values[col], c.inst.Pool)
	case col == d:
		ctx.ResultInt64(n.ID)
	case col == d+1:
		if n.ParentID < 0 {
			ctx.ResultNull()
		} else {
			ctx.ResultInt64(n.ParentID)
		}
	case col == d+2:
		ctx.ResultInt64(int64(n.Depth))
	case col == d+3:
		ctx.ResultInt64(int64(n.ChildCount()))
	case c.inst.IsPivot && col == d+4:
		if n.ChildCount() > 0 {
			ctx.ResultInt64(1)
		} else {
			ctx.ResultInt64(0)
		}
	default:
		aggBase := d + 4
		if c.inst.IsPivot {
			aggBase++
		}
		idx := col - aggBase
		if idx >= 0 && idx < len(n.Agg) {
			resultValue(ctx, n.Agg[idx], c.inst.Pool)
		} else {
			ctx.ResultNull()
		}
	}
	return nil
}

func resultValue(ctx *sqlite3.SQLiteContext, v value.Value, p *pool.Pool) {
	switch v.Type() {
	case value.Null:
		ctx.ResultNull()
	case value.Integer:
		ctx.ResultInt64(v.Int())
	case value.Float:
		ctx.ResultDouble(v.Float())
	case value.Text:
		ctx.ResultText(p.Resolve(v.TextID()))
	}
}

func (c *cursor) Rowid() (int64, error) {
	return c.rows[c.pos].ID, nil
}

func (c *cursor) Close() error { return nil }
