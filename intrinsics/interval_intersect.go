// Package intrinsics implements the C9 misc intrinsic operators as Go
// functions: interval_intersect, graph_scan/graph_aggregating_scan,
// counter_intervals, struct, and a scoped-down metadata_get. Each is
// grounded on the corresponding original_source/.../intrinsics/functions/*.cc
// file. The interval, graph and counter operators return a
// *coltable.Table; NewStruct returns a Struct and MetadataGet a single
// value. Nothing in this module registers them as SQL functions.
package intrinsics

import (
	"strconv"

	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
)

// Interval is one row of a partitioned, sorted interval set: a span
// [Ts, Ts+Dur) tagged with an id unique within its partition.
type Interval struct {
	Ts  int64
	Dur int64
	ID  int64
}

// Partition is one input to IntervalIntersect: intervals sorted by Ts,
// non-overlapping within the partition (the per-track invariant
// interval_intersect.cc relies on).
type Partition struct {
	Intervals []Interval
}

// IntervalIntersect computes the multi-way intersection of n partitioned
// interval sets: it advances, across all partitions, whichever interval
// has the smallest end timestamp, and emits a row whenever every
// partition currently has an interval open (interval_intersect.cc's
// merge-scan approach). An empty input (any partition with zero
// intervals, or zero partitions) collapses the result to zero rows.
func IntervalIntersect(p *pool.Pool, partitions []Partition) (*coltable.Table, status.Status) {
	n := len(partitions)
	colNames := make([]string, 0, n+2)
	colNames = append(colNames, "ts", "dur")
	for i := 0; i < n; i++ {
		colNames = append(colNames, idColumnName(i))
	}
	b := coltable.NewBuilder(p, colNames, nil)

	if n == 0 {
		return b.Finalize(0), status.OK()
	}
	for _, part := range partitions {
		if len(part.Intervals) == 0 {
			return b.Finalize(0), status.OK()
		}
	}

	cursors := make([]int, n)
	rows := 0
	for {
		// Advance any exhausted cursor means no overlap is possible.
		done := false
		for i, c := range cursors {
			if c >= len(partitions[i].Intervals) {
				done = true
			}
		}
		if done {
			break
		}

		start := partitions[0].Intervals[cursors[0]].Ts
		end := partitions[0].Intervals[cursors[0]].Ts + partitions[0].Intervals[cursors[0]].Dur
		ids := make([]int64, n)
		ids[0] = partitions[0].Intervals[cursors[0]].ID
		for i := 1; i < n; i++ {
			iv := partitions[i].Intervals[cursors[i]]
			ivEnd := iv.Ts + iv.Dur
			if iv.Ts > start {
				start = iv.Ts
			}
			if ivEnd < end {
				end = ivEnd
			}
			ids[i] = iv.ID
		}

		if start < end {
			appendIntersectRow(b, start, end-start, ids)
			rows++
		}

		// Advance every cursor whose interval ends at `end` (the smallest
		// end timestamp across partitions).
		for i := range cursors {
			iv := partitions[i].Intervals[cursors[i]]
			if iv.Ts+iv.Dur == end {
				cursors[i]++
			}
		}
	}
	return b.Finalize(rows), status.OK()
}

func idColumnName(i int) string {
	return "id_" + strconv.Itoa(i)
}

func appendIntersectRow(b *coltable.Builder, ts, dur int64, ids []int64) {
	b.AppendInt(0, ts)
	b.AppendInt(1, dur)
	for i, id := range ids {
		b.AppendInt(2+i, id)
	}
}
