// Package engine is the thin façade (C4) over the embedded relational
// engine. It wraps github.com/mattn/go-sqlite3 through database/sql,
// exposing prepared statements, scalar-function and virtual-table-module
// registration, and savepoint/commit/rollback plumbing — the narrow
// surface §4.4 and §6 describe as everything the rest of the core is
// allowed to know about the underlying engine.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/k0kubun/perfettosql/status"
)

// Wrapper owns a single SQLite connection. The core is single-threaded
// and cooperative (§5), so the wrapper deliberately pins the connection
// pool to one connection: function and module registrations attach to a
// specific *sqlite3.SQLiteConn captured on connect, and re-registering
// per connection would be both wasteful and racy.
type Wrapper struct {
	db         *sql.DB
	conn       *sqlite3.SQLiteConn
	driverName string

	funcCtx map[string]interface{}

	commitCallback   func() bool
	rollbackCallback func()
}

// Open creates a Wrapper backed by dbPath (":memory:" for an ephemeral
// in-memory database, matching how the core materializes runtime
// tables).
func Open(dbPath string) (*Wrapper, error) {
	w := &Wrapper{funcCtx: make(map[string]interface{})}
	w.driverName = fmt.Sprintf("perfettosql-%s", uuid.NewString())

	sql.Register(w.driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			w.conn = conn
			conn.RegisterCommitHook(func() int {
				if w.commitCallback != nil && !w.commitCallback() {
					return 1 // non-zero aborts the commit
				}
				return 0
			})
			conn.RegisterRollbackHook(func() {
				if w.rollbackCallback != nil {
					w.rollbackCallback()
				}
			})
			return nil
		},
	})

	db, err := sql.Open(w.driverName, dbPath)
	if err != nil {
		return nil, err
	}
	// A single physical connection: the core never needs concurrent
	// connections and function/module registration is per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	w.db = db
	return w, nil
}

// Close releases the underlying connection.
func (w *Wrapper) Close() error {
	return w.db.Close()
}

// DB exposes the underlying *sql.DB for callers that need to issue
// their own ad hoc statements.
func (w *Wrapper) DB() *sql.DB { return w.db }

// Prepare compiles sql into a steppable PreparedStatement.
func (w *Wrapper) Prepare(sqlText string) (*PreparedStatement, status.Status) {
	return w.PrepareWithOriginal(sqlText, sqlText)
}

// PrepareWithOriginal compiles sqlText but records originalSQL as the
// statement's pre-rewrite text (§4.6 step 3: native statements are
// rewritten to a harmless passthrough before being forwarded here, but
// error messages and tracebacks should still reference the original).
func (w *Wrapper) PrepareWithOriginal(sqlText, originalSQL string) (*PreparedStatement, status.Status) {
	stmt, err := w.db.Prepare(sqlText)
	if err != nil {
		return nil, status.Errorf(status.EngineError, "%s", err.Error())
	}
	return &PreparedStatement{
		wrapper:     w,
		stmt:        stmt,
		originalSQL: originalSQL,
		sql:         sqlText,
		binds:       make(map[string]interface{}),
	}, status.OK()
}

// RegisterScalarFunction registers a scalar SQL function. fn must be a
// function value of a shape go-sqlite3 accepts (e.g.
// func(args ...interface{}) (interface{}, error)). ctx is opaque user
// data retrievable later via FunctionContext.
func (w *Wrapper) RegisterScalarFunction(name string, argc int, fn interface{}, ctx interface{}, deterministic bool) status.Status {
	if w.conn == nil {
		panic("engine: RegisterScalarFunction called before a connection was established")
	}
	if err := w.conn.RegisterFunc(name, fn, deterministic); err != nil {
		return status.Errorf(status.EngineError, "registering function %s: %s", name, err.Error())
	}
	w.funcCtx[functionKey(name, argc)] = ctx
	return status.OK()
}

// FunctionContext returns the user data previously registered for
// (name, argc), or nil and false if no such function was registered.
func (w *Wrapper) FunctionContext(name string, argc int) (interface{}, bool) {
	v, ok := w.funcCtx[functionKey(name, argc)]
	return v, ok
}

func functionKey(name string, argc int) string {
	return fmt.Sprintf("%s/%d", name, argc)
}

// RegisterVirtualTableModule registers a virtual-table module
// implementation under name.
func (w *Wrapper) RegisterVirtualTableModule(name string, module sqlite3.Module) status.Status {
	if w.conn == nil {
		panic("engine: RegisterVirtualTableModule called before a connection was established")
	}
	if err := w.conn.CreateModule(name, module); err != nil {
		return status.Errorf(status.EngineError, "registering module %s: %s", name, err.Error())
	}
	return status.OK()
}

// SetCommitCallback installs the callback invoked by the engine just
// before a COMMIT completes. Returning false aborts the commit. The core
// installs a single aggregate callback here and fans it out to every
// registered virtual-table state manager itself (§4.4).
func (w *Wrapper) SetCommitCallback(cb func() bool) { w.commitCallback = cb }

// SetRollbackCallback installs the callback invoked by the engine on
// ROLLBACK, and by Savepoint's rollback closure after ROLLBACK TO.
func (w *Wrapper) SetRollbackCallback(cb func()) { w.rollbackCallback = cb }

// Exec runs sql directly without going through PreparedStatement,
// discarding any result rows. Used for control statements (SAVEPOINT,
// RELEASE, ROLLBACK TO) that never return rows.
func (w *Wrapper) Exec(ctx context.Context, sqlText string) status.Status {
	if _, err := w.db.ExecContext(ctx, sqlText); err != nil {
		return status.Errorf(status.EngineError, "%s", err.Error())
	}
	return status.OK()
}

// Savepoint begins a named savepoint and returns release/rollback
// closures implementing the savepoint discipline in §7.
func (w *Wrapper) Savepoint(ctx context.Context, name string) (release func() status.Status, rollback func() status.Status, begin status.Status) {
	if s := w.Exec(ctx, "SAVEPOINT "+name); !s.Ok() {
		return nil, nil, s
	}
	release = func() status.Status {
		return w.Exec(ctx, "RELEASE "+name)
	}
	rollback = func() status.Status {
		if s := w.Exec(ctx, "ROLLBACK TO "+name); !s.Ok() {
			return s
		}
		// SQLite's rollback hook does not fire for ROLLBACK TO, so the
		// rollback callback is invoked here directly.
		if w.rollbackCallback != nil {
			w.rollbackCallback()
		}
		return status.OK()
	}
	return release, rollback, status.OK()
}
