package engine

import (
	"context"
	"database/sql"

	"github.com/k0kubun/perfettosql/status"
)

// StepResult is the outcome of advancing a PreparedStatement one row.
type StepResult int

const (
	StepRow StepResult = iota
	StepDone
	StepError
)

// PreparedStatement mirrors the narrow surface §4.4 requires: step-by-
// step row access plus named binds, exposed over database/sql's
// *sql.Stmt/*sql.Rows.
type PreparedStatement struct {
	wrapper     *Wrapper
	stmt        *sql.Stmt
	originalSQL string
	sql         string

	binds map[string]interface{}

	rows     *sql.Rows
	colNames []string
	cur      []interface{}
	started  bool
	isDone   bool
	lastErr  error
}

// BindInt64 binds a $name parameter to an integer.
func (p *PreparedStatement) BindInt64(name string, v int64) { p.binds[name] = v }

// BindFloat64 binds a $name parameter to a float.
func (p *PreparedStatement) BindFloat64(name string, v float64) { p.binds[name] = v }

// BindText binds a $name parameter to a string.
func (p *PreparedStatement) BindText(name string, v string) { p.binds[name] = v }

// BindNull binds a $name parameter to NULL.
func (p *PreparedStatement) BindNull(name string) { p.binds[name] = nil }

func (p *PreparedStatement) namedArgs() []interface{} {
	args := make([]interface{}, 0, len(p.binds))
	for name, v := range p.binds {
		args = append(args, sql.Named(name, v))
	}
	return args
}

// Step advances the statement by one row.
func (p *PreparedStatement) Step(ctx context.Context) (StepResult, status.Status) {
	if p.isDone {
		return StepDone, status.OK()
	}
	if !p.started {
		rows, err := p.stmt.QueryContext(ctx, p.namedArgs()...)
		if err != nil {
			p.isDone = true
			return StepError, status.Errorf(status.EngineError, "%s", err.Error())
		}
		p.rows = rows
		p.colNames, _ = rows.Columns()
		p.cur = make([]interface{}, len(p.colNames))
		p.started = true
	}
	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			p.lastErr = err
			p.isDone = true
			return StepError, status.Errorf(status.EngineError, "%s", err.Error())
		}
		p.isDone = true
		return StepDone, status.OK()
	}
	dest := make([]interface{}, len(p.cur))
	for i := range dest {
		dest[i] = &p.cur[i]
	}
	if err := p.rows.Scan(dest...); err != nil {
		p.lastErr = err
		p.isDone = true
		return StepError, status.Errorf(status.EngineError, "%s", err.Error())
	}
	return StepRow, status.OK()
}

// Reset rewinds the statement so a subsequent Step re-executes it
// (binds survive a Reset, matching sqlite3_reset semantics, until
// overwritten or cleared by the caller).
func (p *PreparedStatement) Reset() {
	if p.rows != nil {
		p.rows.Close()
		p.rows = nil
	}
	p.started = false
	p.isDone = false
	p.cur = nil
}

// IsDone reports whether the statement has been fully stepped.
func (p *PreparedStatement) IsDone() bool { return p.isDone }

// ColumnCount returns the number of result columns. Before the first
// Step it opens the query once (with the binds set so far) to read the
// column names, then closes it again so the connection is not held.
func (p *PreparedStatement) ColumnCount() int {
	if p.colNames == nil && !p.started {
		if rows, err := p.stmt.QueryContext(context.Background(), p.namedArgs()...); err == nil {
			p.colNames, _ = rows.Columns()
			rows.Close()
		}
	}
	return len(p.colNames)
}

func (p *PreparedStatement) ColumnName(i int) string { return p.colNames[i] }

// ColumnInt64 returns the current row's column i as an integer.
func (p *PreparedStatement) ColumnInt64(i int) (int64, bool) {
	switch v := p.cur[i].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// ColumnDouble returns the current row's column i as a float.
func (p *PreparedStatement) ColumnDouble(i int) (float64, bool) {
	switch v := p.cur[i].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// ColumnText returns the current row's column i as a string.
func (p *PreparedStatement) ColumnText(i int) (string, bool) {
	switch v := p.cur[i].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// ColumnIsNull reports whether the current row's column i is NULL.
func (p *PreparedStatement) ColumnIsNull(i int) bool {
	return p.cur[i] == nil
}

// ColumnValue returns the current row's column i as the raw driver
// value (int64, float64, string, []byte or nil), for callers that need
// to dispatch on SQLite's actual storage class rather than coerce to a
// specific Go type.
func (p *PreparedStatement) ColumnValue(i int) interface{} {
	return p.cur[i]
}

// SQL returns the (possibly rewritten) SQL text the statement was
// prepared from.
func (p *PreparedStatement) SQL() string { return p.sql }

// OriginalSQL returns the original, pre-rewrite SQL text.
func (p *PreparedStatement) OriginalSQL() string { return p.originalSQL }

// Close releases the underlying prepared statement.
func (p *PreparedStatement) Close() error {
	if p.rows != nil {
		p.rows.Close()
	}
	return p.stmt.Close()
}
