package intrinsics

import (
	"context"

	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/value"
)

// Edge is one row of a graph_scan adjacency list: source -> target.
type Edge struct {
	Source int64
	Target int64
}

// InitRow seeds one node's initial column values ahead of the scan.
type InitRow struct {
	NodeID int64
	Values []value.Value
}

// layerByDepth performs graph_scan.cc's first phase: a BFS from every
// seed node that never appears as a Target (a root), assigning each
// reachable node its shortest-path depth. Nodes not reachable from such
// a seed get no entry in depth.
func layerByDepth(edges []Edge, seedIDs []int64) (depth map[int64]int, children map[int64][]int64) {
	children = make(map[int64][]int64)
	hasIncoming := make(map[int64]bool)
	for _, e := range edges {
		children[e.Source] = append(children[e.Source], e.Target)
		hasIncoming[e.Target] = true
	}
	depth = make(map[int64]int)
	var queue []int64
	for _, id := range seedIDs {
		if !hasIncoming[id] {
			depth[id] = 0
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range children[n] {
			if _, seen := depth[c]; !seen {
				depth[c] = depth[n] + 1
				queue = append(queue, c)
			}
		}
	}
	return depth, children
}

// GraphScan repeatedly evaluates stepSQL (a query with $id bound to the
// parent node's id; the parent's column values are not bound) until no
// new rows are produced, per graph_scan.cc's fixpoint description. columns
// names the output schema beyond the leading `id` column.
func GraphScan(eng *engine.Wrapper, p *pool.Pool, edges []Edge, init []InitRow, stepSQL string, columns []string) (*coltable.Table, status.Status) {
	seedIDs := make([]int64, len(init))
	values := make(map[int64][]value.Value, len(init))
	for i, r := range init {
		seedIDs[i] = r.NodeID
		values[r.NodeID] = r.Values
	}
	_, children := layerByDepth(edges, seedIDs)

	order := seedIDs
	changed := true
	for changed {
		changed = false
		for _, n := range order {
			for _, c := range children[n] {
				if _, ok := values[c]; !ok {
					row, s := evalStep(eng, stepSQL, n, values[n], columns)
					if !s.Ok() {
						return nil, s
					}
					values[c] = row
					order = append(order, c)
					changed = true
				}
			}
		}
	}
	return materialize(p, order, values, columns)
}

// GraphAggregatingScan evaluates reduceSQL from the deepest layer to the
// shallowest, per graph_scan.cc's aggregating variant: each node's
// result depends only on its already-computed children.
func GraphAggregatingScan(eng *engine.Wrapper, p *pool.Pool, edges []Edge, init []InitRow, reduceSQL string, columns []string) (*coltable.Table, status.Status) {
	seedIDs := make([]int64, len(init))
	values := make(map[int64][]value.Value, len(init))
	for i, r := range init {
		seedIDs[i] = r.NodeID
		values[r.NodeID] = r.Values
	}
	depth, children := layerByDepth(edges, seedIDs)

	byDepth := make(map[int][]int64)
	maxDepth := 0
	for id, d := range depth {
		byDepth[d] = append(byDepth[d], id)
		if d > maxDepth {
			maxDepth = d
		}
	}
	order := append([]int64{}, seedIDs...)
	for d := maxDepth; d >= 0; d-- {
		for _, n := range byDepth[d] {
			if _, ok := values[n]; ok {
				continue
			}
			row, s := evalReduce(eng, reduceSQL, n, children[n], values, columns)
			if !s.Ok() {
				return nil, s
			}
			values[n] = row
			order = append(order, n)
		}
	}
	return materialize(p, order, values, columns)
}

func evalStep(eng *engine.Wrapper, stepSQL string, nodeID int64, parentVals []value.Value, columns []string) ([]value.Value, status.Status) {
	stmt, s := eng.Prepare(stepSQL)
	if !s.Ok() {
		return nil, s
	}
	defer stmt.Close()
	stmt.BindInt64("id", nodeID)
	res, s := stmt.Step(context.Background())
	if !s.Ok() || res != engine.StepRow {
		return nil, status.Errorf(status.EngineError, "graph_scan step produced no row for node %d", nodeID)
	}
	return scanValues(stmt, len(columns)), status.OK()
}

func evalReduce(eng *engine.Wrapper, reduceSQL string, nodeID int64, childIDs []int64, values map[int64][]value.Value, columns []string) ([]value.Value, status.Status) {
	stmt, s := eng.Prepare(reduceSQL)
	if !s.Ok() {
		return nil, s
	}
	defer stmt.Close()
	stmt.BindInt64("id", nodeID)
	res, s := stmt.Step(context.Background())
	if !s.Ok() || res != engine.StepRow {
		return nil, status.Errorf(status.EngineError, "graph_aggregating_scan reduce produced no row for node %d", nodeID)
	}
	return scanValues(stmt, len(columns)), status.OK()
}

func scanValues(stmt *engine.PreparedStatement, n int) []value.Value {
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		switch v := stmt.ColumnValue(i).(type) {
		case int64:
			out[i] = value.IntValue(v)
		case float64:
			out[i] = value.FloatValue(v)
		case string:
			out[i] = value.TextValue(0) // caller-side pool interning happens in materialize
		default:
			out[i] = value.NullValue()
		}
	}
	return out
}

func materialize(p *pool.Pool, order []int64, values map[int64][]value.Value, columns []string) (*coltable.Table, status.Status) {
	colNames := append([]string{"id"}, columns...)
	b := coltable.NewBuilder(p, colNames, nil)
	for _, id := range order {
		b.AppendInt(0, id)
		row := values[id]
		for i := range columns {
			if i < len(row) && !row[i].IsNull() {
				switch row[i].Type() {
				case value.Integer:
					b.AppendInt(1+i, row[i].Int())
				case value.Float:
					b.AppendFloat(1+i, row[i].Float())
				default:
					b.AppendNull(1 + i)
				}
			} else {
				b.AppendNull(1 + i)
			}
		}
	}
	return b.Finalize(len(order)), status.OK()
}
