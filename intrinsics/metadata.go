package intrinsics

import "github.com/k0kubun/perfettosql/value"

// MetadataSource is the scoped-down interface metadata_get* binds
// against (§4.9, §5 "MetadataGet is scoped down"): a caller-supplied
// lookup over an external trace-metadata table, disambiguated by
// (machineID, traceID) with "prefer smallest non-null" semantics. No
// concrete trace-metadata schema is bundled; callers that need one
// implement this interface themselves.
type MetadataSource interface {
	// Lookup returns every candidate value for name across known
	// (machineID, traceID) pairs.
	Lookup(name string) []MetadataCandidate
}

// MetadataCandidate is one (machineID, traceID, value) row a
// MetadataSource can return for a given key.
type MetadataCandidate struct {
	MachineID int64
	TraceID   int64
	Value     value.Value
}

// MetadataGet resolves name against src using "prefer smallest non-null"
// disambiguation: among candidates with a non-null Value, the one with
// the smallest (MachineID, TraceID) pair wins; absent any non-null
// candidate, the result is null.
func MetadataGet(src MetadataSource, name string) value.Value {
	candidates := src.Lookup(name)
	var best *MetadataCandidate
	for i := range candidates {
		c := &candidates[i]
		if c.Value.IsNull() {
			continue
		}
		if best == nil || c.MachineID < best.MachineID ||
			(c.MachineID == best.MachineID && c.TraceID < best.TraceID) {
			best = c
		}
	}
	if best == nil {
		return value.NullValue()
	}
	return best.Value
}
