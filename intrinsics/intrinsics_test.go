package intrinsics

import (
	"testing"

	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/value"
)

func TestIntervalIntersectBasic(t *testing.T) {
	p := pool.New()
	a := Partition{Intervals: []Interval{{Ts: 0, Dur: 10, ID: 1}, {Ts: 10, Dur: 10, ID: 2}}}
	b := Partition{Intervals: []Interval{{Ts: 5, Dur: 10, ID: 100}}}

	table, s := IntervalIntersect(p, []Partition{a, b})
	if !s.Ok() {
		t.Fatalf("unexpected error: %v", s.Message())
	}
	if table.RowCount() != 2 {
		t.Fatalf("expected 2 overlap rows, got %d", table.RowCount())
	}
	ts, _ := table.Int(0, 0)
	dur, _ := table.Int(1, 0)
	if ts != 5 || dur != 5 {
		t.Fatalf("first overlap = [%d, %d), want [5, 10)", ts, ts+dur)
	}
}

func TestIntervalIntersectEmptyInput(t *testing.T) {
	p := pool.New()
	table, s := IntervalIntersect(p, nil)
	if !s.Ok() || table.RowCount() != 0 {
		t.Fatalf("expected zero rows for empty input")
	}
	table2, s := IntervalIntersect(p, []Partition{{Intervals: nil}, {Intervals: []Interval{{Ts: 0, Dur: 1, ID: 1}}}})
	if !s.Ok() || table2.RowCount() != 0 {
		t.Fatalf("expected zero rows when any partition is empty")
	}
}

func TestCounterIntervalsForward(t *testing.T) {
	p := pool.New()
	samples := []CounterSample{
		{Ts: 0, TrackID: 1, Value: 10},
		{Ts: 5, TrackID: 1, Value: 20},
	}
	table, s := CounterIntervals(p, samples, 10, Forward)
	if !s.Ok() {
		t.Fatalf("unexpected error: %v", s.Message())
	}
	if table.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.RowCount())
	}
	dur0, _ := table.Int(1, 0)
	if dur0 != 5 {
		t.Fatalf("first interval duration = %d, want 5", dur0)
	}
	dur1, _ := table.Int(1, 1)
	if dur1 != 5 {
		t.Fatalf("last interval should extend to trace_end: dur = %d, want 5", dur1)
	}
}

func TestStructFieldLookup(t *testing.T) {
	args := []value.Value{value.NullValue(), value.IntValue(42)}
	keys := []string{"answer"}
	s, status := NewStruct(args, func(i int) (string, bool) { return keys[i/2], true })
	if !status.Ok() {
		t.Fatalf("unexpected error: %v", status.Message())
	}
	v, ok := s.Field("answer")
	if !ok || v.Int() != 42 {
		t.Fatalf("expected field answer=42, got %v ok=%v", v, ok)
	}
	if _, ok := s.Field("missing"); ok {
		t.Fatalf("expected missing field lookup to fail")
	}
}

func TestStructOddArgCount(t *testing.T) {
	_, s := NewStruct([]value.Value{value.IntValue(1)}, func(i int) (string, bool) { return "", false })
	if s.Ok() {
		t.Fatalf("expected BadArgument for odd arg count")
	}
}

type fakeMetadataSource struct {
	candidates []MetadataCandidate
}

func (f fakeMetadataSource) Lookup(name string) []MetadataCandidate { return f.candidates }

func TestMetadataGetPrefersSmallest(t *testing.T) {
	src := fakeMetadataSource{candidates: []MetadataCandidate{
		{MachineID: 2, TraceID: 0, Value: value.IntValue(200)},
		{MachineID: 1, TraceID: 5, Value: value.IntValue(100)},
		{MachineID: 1, TraceID: 5, Value: value.NullValue()},
	}}
	got := MetadataGet(src, "key")
	if got.IsNull() || got.Int() != 100 {
		t.Fatalf("expected smallest (machine_id, trace_id) non-null candidate, got %v", got)
	}
}

func TestMetadataGetAllNull(t *testing.T) {
	src := fakeMetadataSource{candidates: []MetadataCandidate{{Value: value.NullValue()}}}
	if got := MetadataGet(src, "key"); !got.IsNull() {
		t.Fatalf("expected null when no candidate has a value")
	}
}
