package dataframe

import (
	"sort"

	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/value"
)

// compareValues orders two cells for index construction: null sorts
// first, then numeric comparison (ints/floats compared as float64,
// matching the rollup/pivot null-handling rule), then text compared by
// resolved string.
func compareValues(p *pool.Pool, a, b value.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	if a.Type() == value.Text || b.Type() == value.Text {
		as, bs := textOf(p, a), textOf(p, b)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func textOf(p *pool.Pool, v value.Value) string {
	if v.Type() != value.Text {
		return ""
	}
	return p.Resolve(v.TextID())
}

func sortInts(order []int, less func(a, b int) bool) {
	sort.SliceStable(order, func(i, j int) bool {
		return less(order[i], order[j])
	})
}
