package perfettosql

import (
	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/sqlparse"
)

// frameKind tags the three shapes of frame the execution loop pushes
// (§3.5, §4.6 "internal execution loop").
type frameKind int

const (
	frameRoot frameKind = iota
	frameInclude
	frameWildcard
)

// Stats is the accumulated statement count an Execute call returns.
type Stats struct {
	Statements int
}

// frame is one entry of the engine's explicit frame stack. The stack is
// a []*frame, so each frame lives on the heap and a *frame handed to
// processFrame stays valid even when re-entrant Execute calls grow and
// shrink the slice underneath it (spec §9 "Re-entrant execution and
// pointer stability").
type frame struct {
	kind frameKind

	sql    string // lazily parsed into parser on first visit
	parser *sqlparse.Parser

	current     *engine.PreparedStatement
	emittedRows bool
	stats       Stats

	// Include only.
	moduleKey string

	// Wildcard only: the remaining not-yet-visited module keys.
	pending []string
}
