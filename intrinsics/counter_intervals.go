package intrinsics

import (
	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/status"
)

// Direction selects counter_intervals.cc's forward/reverse directional
// mode: forward extends each sample's interval up to the next sample
// (or trace_end for the last one); reverse extends it back from the
// previous sample.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// CounterSample is one sparse counter reading on a single track.
type CounterSample struct {
	Ts      int64
	TrackID int64
	Value   float64
}

// CounterIntervals converts a sparse, per-track counter-value stream
// (already sorted by (TrackID, Ts)) into `[ts, ts+dur)` intervals
// carrying value/next_value/delta_value, per counter_intervals.cc.
func CounterIntervals(p *pool.Pool, samples []CounterSample, traceEnd int64, dir Direction) (*coltable.Table, status.Status) {
	colNames := []string{"ts", "dur", "track_id", "value", "next_value", "delta_value"}
	b := coltable.NewBuilder(p, colNames, nil)

	rows := 0
	for i, s := range samples {
		var dur int64
		var nextValid bool
		var next float64

		switch dir {
		case Forward:
			end := traceEnd
			if i+1 < len(samples) && samples[i+1].TrackID == s.TrackID {
				end = samples[i+1].Ts
				next = samples[i+1].Value
				nextValid = true
			}
			dur = end - s.Ts
		case Reverse:
			start := s.Ts
			end := traceEnd
			if i+1 < len(samples) && samples[i+1].TrackID == s.TrackID {
				end = samples[i+1].Ts
			}
			if i > 0 && samples[i-1].TrackID == s.TrackID {
				start = samples[i-1].Ts
			}
			dur = end - start
			if i+1 < len(samples) && samples[i+1].TrackID == s.TrackID {
				next = samples[i+1].Value
				nextValid = true
			}
		}
		if dur < 0 {
			continue
		}

		b.AppendInt(0, s.Ts)
		b.AppendInt(1, dur)
		b.AppendInt(2, s.TrackID)
		b.AppendFloat(3, s.Value)
		if nextValid {
			b.AppendFloat(4, next)
			b.AppendFloat(5, next-s.Value)
		} else {
			b.AppendNull(4)
			b.AppendNull(5)
		}
		rows++
	}
	return b.Finalize(rows), status.OK()
}
