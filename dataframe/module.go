// Package dataframe implements the __intrinsic_dataframe virtual-table
// module: it wraps a finalized coltable.Table and exposes it as a
// queryable SQLite table. It backs CREATE PERFETTO TABLE (§4.6) and is
// the registration point runtime table functions and rollup results use
// when they choose to materialize.
package dataframe

import (
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/status"
)

// Index is a composite, named index over a State's columns (§4.6 CREATE
// PERFETTO INDEX). It is a simple sorted-position index: a list of row
// ordinals sorted by the key columns, since coltable.Table is immutable
// once finalized.
type Index struct {
	Name    string
	Columns []int
	Order   []int // row ordinals, sorted by Columns
}

// State is one materialized dataframe: a name, its backing Table, and
// any composite indexes built over it.
type State struct {
	Name    string
	Table   *coltable.Table
	Indexes map[string]*Index
}

// Registry owns every materialized dataframe and the "temporary create
// state" handoff slot (§5/§6.3) used to pass a freshly built Table from
// engine code into the module's Create method.
type Registry struct {
	handoff *State
	byName  map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*State)}
}

// BeginCreate stages name/table in the handoff slot ahead of issuing
// `CREATE VIRTUAL TABLE name USING __intrinsic_dataframe()`. It is a
// fatal precondition violation for the slot to be non-empty already
// (§5 "Shared resources").
func (r *Registry) BeginCreate(name string, table *coltable.Table) {
	if r.handoff != nil {
		panic("dataframe: temporary create state slot was not empty on entry")
	}
	r.handoff = &State{Name: name, Table: table, Indexes: make(map[string]*Index)}
}

// AbandonCreate clears the handoff slot after a failed CREATE, so the
// fatal-precondition check in BeginCreate does not misfire on the next
// attempt.
func (r *Registry) AbandonCreate() {
	r.handoff = nil
}

// OnCommit implements engine's state-manager fan-out (§4.4): the
// dataframe registry has nothing that can veto a commit.
func (r *Registry) OnCommit() bool { return true }

// OnRollback implements engine's state-manager fan-out (§4.4): a
// SAVEPOINT/transaction rollback clears any handoff left staged by a
// CREATE that didn't get to run its own AbandonCreate, so the next
// BeginCreate's fatal-precondition check doesn't misfire.
func (r *Registry) OnRollback() {
	r.handoff = nil
}

// Lookup returns the registered State for name.
func (r *Registry) Lookup(name string) (*State, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Drop removes name from the registry (used by CREATE OR REPLACE; see
// RT2).
func (r *Registry) Drop(name string) {
	delete(r.byName, name)
}

// FindIndexTable locates the State owning an index named idxName,
// across every registered table ("DROP PERFETTO INDEX finds by name
// across all tables" — §4.6).
func (r *Registry) FindIndexTable(idxName string) (*State, bool) {
	for _, s := range r.byName {
		if _, ok := s.Indexes[idxName]; ok {
			return s, true
		}
	}
	return nil, false
}

// Module implements sqlite3.Module for __intrinsic_dataframe. It is
// eponymous-free: every dataframe is a distinct, explicitly
// CREATE VIRTUAL TABLE'd instance, consuming the registry's handoff
// slot at creation time.
type Module struct {
	Registry *Registry
}

func (m *Module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	if m.Registry.handoff == nil {
		return nil, fmt.Errorf("dataframe: Create called with an empty handoff slot")
	}
	st := m.Registry.handoff
	m.Registry.handoff = nil
	m.Registry.byName[st.Name] = st

	if err := c.DeclareVTab(declareSQL(st.Table)); err != nil {
		return nil, err
	}
	return &vtab{state: st}, nil
}

func (m *Module) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Create(c, args)
}

func (m *Module) DestroyModule() {}

func declareSQL(t *coltable.Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE x(")
	names := t.ColumnNames()
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(name)
		switch t.ColumnType(i) {
		case coltable.ColumnInt:
			b.WriteString(" INTEGER")
		case coltable.ColumnFloat:
			b.WriteString(" REAL")
		case coltable.ColumnText:
			b.WriteString(" TEXT")
		}
	}
	b.WriteString("," + coltable.AutoIDColumnName + " INTEGER HIDDEN)")
	return b.String()
}

type vtab struct {
	state *State
}

func (v *vtab) BestIndex(_ []sqlite3.InfoConstraint, _ []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	return &sqlite3.IndexResult{
		Used:          make([]bool, 0),
		EstimatedCost: float64(v.state.Table.RowCount() + 1),
		EstimatedRows: float64(v.state.Table.RowCount()),
	}, nil
}

func (v *vtab) Open() (sqlite3.VTabCursor, error) {
	return &cursor{state: v.state, row: 0}, nil
}

func (v *vtab) Disconnect() error { return nil }
func (v *vtab) Destroy() error    { return nil }

type cursor struct {
	state *State
	row   int
}

func (c *cursor) Filter(idxNum int, idxStr string, vals []interface{}) error {
	c.row = 0
	return nil
}

func (c *cursor) Next() error {
	c.row++
	return nil
}

func (c *cursor) EOF() bool {
	return c.row >= c.state.Table.RowCount()
}

func (c *cursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	t := c.state.Table
	if col == len(t.ColumnNames()) {
		ctx.ResultInt64(t.AutoID(c.row))
		return nil
	}
	if t.IsNull(col, c.row) {
		ctx.ResultNull()
		return nil
	}
	switch t.ColumnType(col) {
	case coltable.ColumnInt:
		v, _ := t.Int(col, c.row)
		ctx.ResultInt64(v)
	case coltable.ColumnFloat:
		v, _ := t.Float(col, c.row)
		ctx.ResultDouble(v)
	case coltable.ColumnText:
		v, _ := t.Text(col, c.row)
		ctx.ResultText(v)
	}
	return nil
}

func (c *cursor) Rowid() (int64, error) {
	return c.state.Table.AutoID(c.row), nil
}

func (c *cursor) Close() error { return nil }

// BuildIndex constructs a composite index over colIdxs and registers it
// under name on st (CREATE PERFETTO INDEX, §4.6). Re-creating a name
// without replace fails with DuplicateDefinition.
func BuildIndex(st *State, name string, colIdxs []int, replace bool) status.Status {
	if _, exists := st.Indexes[name]; exists && !replace {
		return status.Errorf(status.DuplicateDefinition, "index %s already exists", name)
	}
	rows := st.Table.RowCount()
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	p := st.Table.Pool()
	less := func(a, b int) bool {
		for _, col := range colIdxs {
			va, vb := st.Table.Value(col, a), st.Table.Value(col, b)
			if cmp := compareValues(p, va, vb); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	}
	sortInts(order, less)
	st.Indexes[name] = &Index{Name: name, Columns: colIdxs, Order: order}
	return status.OK()
}

// DropIndex removes name from st.
func DropIndex(st *State, name string) status.Status {
	if _, exists := st.Indexes[name]; !exists {
		return status.Errorf(status.UnknownIndex, "index %s does not exist", name)
	}
	delete(st.Indexes, name)
	return status.OK()
}
