// Package rollup implements the two hierarchical-aggregation virtual
// table modules (C8, §3.4/§4.8): __intrinsic_rollup_tree and
// __intrinsic_pivot. Both build a Tree from a synthesized UNION ALL
// query against a user-supplied source, then serve it with expand/
// collapse, sort, pagination and depth filtering.
package rollup

import "github.com/k0kubun/perfettosql/value"

// Node is one rollup tree node: a grand-total root, or a node
// representing a distinct tuple of the first Depth hierarchy columns.
type Node struct {
	ID       int64
	ParentID int64 // -1 for root
	Depth    int   // 0 = root
	Values   []value.Value
	Agg      []value.Value
	Parent   *Node
	Children []*Node
}

// Tree is a rollup tree over d hierarchy columns and m aggregates.
type Tree struct {
	Root    *Node
	ByID    map[int64]*Node
	Depth   int // d, the number of hierarchy columns
	NumAggs int // m
	nextID  int64
}

// NewTree constructs an empty tree with just the (all-null, zero-value)
// root node.
func NewTree(depth, numAggs int) *Tree {
	root := &Node{
		ID:       0,
		ParentID: -1,
		Depth:    0,
		Values:   nullValues(depth),
		Agg:      nullValues(numAggs),
	}
	return &Tree{
		Root:    root,
		ByID:    map[int64]*Node{0: root},
		Depth:   depth,
		NumAggs: numAggs,
		nextID:  1,
	}
}

func nullValues(n int) []value.Value {
	v := make([]value.Value, n)
	for i := range v {
		v[i] = value.NullValue()
	}
	return v
}

// InsertRow ingests one row produced by the synthesized rollup query:
// level -1 assigns agg to the root; level L in [0, d-1] inserts (or
// locates) the node for keys[0..L] and assigns its aggregates, creating
// any missing ancestor lazily (§3.4, "Tree construction").
func (t *Tree) InsertRow(level int, keys []value.Value, agg []value.Value) {
	if level == -1 {
		t.Root.Agg = agg
		return
	}
	node := t.ensurePath(keys, level+1)
	node.Agg = agg
}

func (t *Tree) ensurePath(keys []value.Value, depth int) *Node {
	cur := t.Root
	for l := 0; l < depth; l++ {
		cur = t.childFor(cur, l, keys[l])
	}
	return cur
}

func (t *Tree) childFor(parent *Node, levelIdx int, key value.Value) *Node {
	for _, c := range parent.Children {
		if sameValue(c.Values[levelIdx], key) {
			return c
		}
	}
	vals := make([]value.Value, t.Depth)
	copy(vals, parent.Values)
	vals[levelIdx] = key
	for i := levelIdx + 1; i < t.Depth; i++ {
		vals[i] = value.NullValue()
	}
	node := &Node{
		ID:       t.nextID,
		ParentID: parent.ID,
		Depth:    levelIdx + 1,
		Values:   vals,
		Agg:      nullValues(t.NumAggs),
		Parent:   parent,
	}
	t.nextID++
	parent.Children = append(parent.Children, node)
	t.ByID[node.ID] = node
	return node
}

func sameValue(a, b value.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Type() {
	case value.Integer:
		return a.Int() == b.Int()
	case value.Float:
		return a.Float() == b.Float()
	case value.Text:
		return a.TextID() == b.TextID()
	default:
		return true
	}
}

// ChildCount returns len(n.Children), matching the __child_count column.
func (n *Node) ChildCount() int { return len(n.Children) }
