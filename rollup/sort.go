package rollup

import (
	"sort"
	"strconv"
	"strings"

	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/value"
)

type sortKind int

const (
	sortAlphabetic sortKind = iota
	sortGroup
	sortAgg
)

// Spec is a parsed __sort hidden-column value (§4.8 "Sort specification").
type Spec struct {
	Kind  sortKind
	Level int // for sortGroup: the hierarchy level it targets
	Agg   int // for sortAgg: the aggregate index
	Desc  bool
}

// ParseSort parses a __sort string. An empty, unrecognized, or bare-name
// spec falls back to alphabetic ascending.
func ParseSort(spec string) Spec {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Spec{Kind: sortAlphabetic}
	}
	fields := strings.Fields(spec)
	name := fields[0]
	desc := len(fields) > 1 && strings.EqualFold(fields[1], "DESC")

	switch {
	case strings.HasPrefix(name, "__group_"):
		if n, err := strconv.Atoi(strings.TrimPrefix(name, "__group_")); err == nil {
			return Spec{Kind: sortGroup, Level: n, Desc: desc}
		}
	case strings.HasPrefix(name, "__agg_"):
		if n, err := strconv.Atoi(strings.TrimPrefix(name, "__agg_")); err == nil {
			return Spec{Kind: sortAgg, Agg: n, Desc: desc}
		}
	}
	return Spec{Kind: sortAlphabetic}
}

// SortTree recursively orders every node's Children in place per spec.
func SortTree(t *Tree, spec Spec, p *pool.Pool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		sortChildren(n, spec, p)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

func sortChildren(n *Node, spec Spec, p *pool.Pool) {
	levelOfChildren := n.Depth
	var less func(i, j int) bool
	switch spec.Kind {
	case sortAgg:
		less = func(i, j int) bool {
			return aggLess(n.Children[i], n.Children[j], spec.Agg, spec.Desc, p)
		}
	case sortGroup:
		if levelOfChildren == spec.Level {
			less = func(i, j int) bool {
				return keyLess(n.Children[i], n.Children[j], levelOfChildren, spec.Desc, p)
			}
		} else {
			less = func(i, j int) bool {
				return keyLess(n.Children[i], n.Children[j], levelOfChildren, false, p)
			}
		}
	default:
		less = func(i, j int) bool {
			return keyLess(n.Children[i], n.Children[j], levelOfChildren, false, p)
		}
	}
	sort.SliceStable(n.Children, less)
}

func keyLess(a, b *Node, level int, desc bool, p *pool.Pool) bool {
	as, bs := valueToString(p, a.Values[level]), valueToString(p, b.Values[level])
	if desc {
		return as > bs
	}
	return as < bs
}

// aggLess implements the "Aggregate comparison" rule: both-string
// compares lexicographically, otherwise both convert to double (null
// becomes -infinity).
func aggLess(a, b *Node, idx int, desc bool, p *pool.Pool) bool {
	if idx < 0 || idx >= len(a.Agg) {
		return false
	}
	av, bv := a.Agg[idx], b.Agg[idx]
	var less bool
	if av.Type() == value.Text && bv.Type() == value.Text {
		less = valueToString(p, av) < valueToString(p, bv)
	} else {
		af, _ := av.AsFloat()
		bf, _ := bv.AsFloat()
		less = af < bf
	}
	if desc {
		return !less && !aggEqual(av, bv, p)
	}
	return less
}

func aggEqual(a, b value.Value, p *pool.Pool) bool {
	if a.Type() == value.Text && b.Type() == value.Text {
		return valueToString(p, a) == valueToString(p, b)
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	return af == bf
}

func valueToString(p *pool.Pool, v value.Value) string {
	switch v.Type() {
	case value.Null:
		return ""
	case value.Integer:
		return strconv.FormatInt(v.Int(), 10)
	case value.Float:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case value.Text:
		return p.Resolve(v.TextID())
	default:
		return ""
	}
}
