// Package perfettosql implements the PerfettoSQL engine (C6): the
// top-level execution loop that drives the extended-SQL parser, runs
// native CREATE/INCLUDE statements directly, forwards everything else
// to the embedded relational engine, and tolerates re-entrant execution
// triggered by user-defined functions calling back into Execute.
package perfettosql

import (
	"context"
	"fmt"

	"github.com/k0kubun/perfettosql/dataframe"
	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/pool"
	"github.com/k0kubun/perfettosql/rollup"
	"github.com/k0kubun/perfettosql/sqlparse"
	"github.com/k0kubun/perfettosql/status"
)

// outcome is ProcessFrame's three-way result (§4.6 "internal execution
// loop").
type outcome int

const (
	outcomeContinue outcome = iota
	outcomeFrameDone
	outcomeReturnResult
)

// Engine is the top-level PerfettoSQL front-end: one per embedded
// connection, owning the macro table, module registry, function
// registry, and the materialized-dataframe/rollup/pivot virtual-table
// state that persists across statements (§5 "Shared resources").
type Engine struct {
	wrapper *engine.Wrapper
	pool    *pool.Pool
	macros  *sqlparse.MacroTable
	modules *ModuleRegistry
	funcs   *functionRegistry

	dataframes   *dataframe.Registry
	rollupModule *rollup.Module
	pivotModule  *rollup.Module

	included map[string]bool
	frames   []*frame

	// strictViewChecks mirrors "if extra checks are enabled" (§4.6
	// CREATE PERFETTO VIEW): when set, a view's body is additionally
	// materialized once at creation time to surface type errors early.
	strictViewChecks bool

	// LogSink receives a line before a rollback failure is escalated to
	// Fatal (§9 "rollback itself failed"). Nil disables logging.
	LogSink func(string)
}

const (
	dataframeModuleName = "__intrinsic_dataframe"
	rollupModuleName    = "__intrinsic_rollup_tree"
	pivotModuleName     = "__intrinsic_pivot"
)

// NewEngine constructs an Engine over an already-open Wrapper,
// registering the three always-present virtual-table modules the core
// itself owns (the adhoc-dataframe backing store and the rollup/pivot
// operators).
func NewEngine(w *engine.Wrapper, modules *ModuleRegistry) (*Engine, status.Status) {
	e := &Engine{
		wrapper:    w,
		pool:       pool.New(),
		macros:     sqlparse.NewMacroTable(),
		modules:    modules,
		funcs:      newFunctionRegistry(),
		dataframes: dataframe.NewRegistry(),
		included:   make(map[string]bool),
	}
	if s := w.RegisterVirtualTableModule(dataframeModuleName, &dataframe.Module{Registry: e.dataframes}); !s.Ok() {
		return nil, s
	}
	e.rollupModule = &rollup.Module{Eng: w, Pool: e.pool, IsPivot: false}
	if s := w.RegisterVirtualTableModule(rollupModuleName, e.rollupModule); !s.Ok() {
		return nil, s
	}
	e.pivotModule = &rollup.Module{Eng: w, Pool: e.pool, IsPivot: true}
	if s := w.RegisterVirtualTableModule(pivotModuleName, e.pivotModule); !s.Ok() {
		return nil, s
	}

	// Fan the engine's single aggregate commit/rollback hook out to
	// every registered virtual-table state manager (§4.4). The
	// dataframe registry is currently the only one with in-memory
	// state that outlives a single statement; rollup and tablefn carry
	// none.
	w.SetCommitCallback(func() bool { return e.dataframes.OnCommit() })
	w.SetRollbackCallback(func() { e.dataframes.OnRollback() })

	return e, status.OK()
}

// SetStrictViewChecks toggles the optional extra CREATE PERFETTO VIEW
// materialization pass.
func (e *Engine) SetStrictViewChecks(v bool) { e.strictViewChecks = v }

// SetDefaults seeds the implicit __sort/__limit every rollup/pivot
// table created from this point on falls back to when a query leaves
// the corresponding hidden column unconstrained (config.Config's
// default_sort/default_limit, ambient stack §2 "Configuration").
func (e *Engine) SetDefaults(sort string, limit int) {
	e.rollupModule.DefaultSort = sort
	e.rollupModule.DefaultLimit = limit
	e.pivotModule.DefaultSort = sort
	e.pivotModule.DefaultLimit = limit
}

// PrepareSqliteStatement compiles sql directly against the underlying
// engine, bypassing the native-statement dispatch entirely.
func (e *Engine) PrepareSqliteStatement(sqlText string) (*engine.PreparedStatement, status.Status) {
	return e.wrapper.Prepare(sqlText)
}

// Execute runs every statement in sql, discarding any result rows, and
// returns the accumulated statement count.
func (e *Engine) Execute(sqlText string) (Stats, status.Status) {
	stmt, stats, s := e.run(sqlText)
	if stmt != nil {
		if s.Ok() {
			s = drain(stmt)
		}
		stmt.Close()
	}
	return stats, s
}

// ExecuteUntilLastStatement runs every statement up to (and including)
// the last one in sql, returning that last statement having already
// been stepped exactly once so the caller can iterate its remaining
// rows.
func (e *Engine) ExecuteUntilLastStatement(sqlText string) (*engine.PreparedStatement, Stats, status.Status) {
	return e.run(sqlText)
}

// drain fully steps stmt to completion, discarding rows.
func drain(stmt *engine.PreparedStatement) status.Status {
	for {
		res, s := stmt.Step(context.Background())
		if !s.Ok() {
			return s
		}
		if res == engine.StepDone {
			return status.OK()
		}
	}
}

// run drives the frame-stack execution loop over sql. It is re-entrant:
// a statement handler invoked from within this call may itself call
// Execute/ExecuteUntilLastStatement, which pushes its own root frame on
// top of the stack and unwinds back to its own entry depth before
// returning, leaving this call's frames untouched (§4.6 "Re-entrancy").
func (e *Engine) run(sqlText string) (*engine.PreparedStatement, Stats, status.Status) {
	entryDepth := len(e.frames)
	e.frames = append(e.frames, &frame{kind: frameRoot, sql: sqlText})

	var resultStmt *engine.PreparedStatement
	var resultStats Stats
	result := status.OK()

loop:
	for len(e.frames) > entryDepth {
		top := e.frames[len(e.frames)-1]
		out, stmt, s := e.processFrame(top)
		if !s.Ok() {
			result = s
			break loop
		}
		switch out {
		case outcomeContinue:
			// top may have pushed a child frame; re-read len(e.frames)
			// next iteration rather than assuming top is still on top.
		case outcomeFrameDone:
			e.frames = e.frames[:len(e.frames)-1]
		case outcomeReturnResult:
			resultStmt = stmt
			resultStats = top.stats
			e.frames = e.frames[:len(e.frames)-1]
			break loop
		}
	}

	// Unwind to entryDepth regardless of outcome (IN7: frame stack
	// empty relative to entry on return). On an error path the innermost
	// Include frame still open prepends its traceback line; outer ones
	// add nothing, since WithTraceback applies only once per status.
	for len(e.frames) > entryDepth {
		top := e.frames[len(e.frames)-1]
		if !result.Ok() && top.kind == frameInclude {
			result = result.WithTraceback(fmt.Sprintf("while processing INCLUDE PERFETTO MODULE %s: ", top.moduleKey))
		}
		if top.current != nil {
			top.current.Close()
		}
		e.frames = e.frames[:len(e.frames)-1]
	}

	return resultStmt, resultStats, result
}

// processFrame implements one step of the loop described in §4.6.
func (e *Engine) processFrame(top *frame) (outcome, *engine.PreparedStatement, status.Status) {
	if top.kind == frameWildcard {
		if len(top.pending) == 0 {
			return outcomeFrameDone, nil, status.OK()
		}
		key := top.pending[0]
		top.pending = top.pending[1:]
		if e.included[key] {
			return outcomeContinue, nil, status.OK()
		}
		body, s := e.modules.Resolve(key)
		if !s.Ok() {
			return 0, nil, s
		}
		e.frames = append(e.frames, &frame{kind: frameInclude, sql: body, moduleKey: key})
		return outcomeContinue, nil, status.OK()
	}

	if top.parser == nil {
		top.parser = sqlparse.NewParser(top.sql, e.macros)
	}

	stmt, ok, s := top.parser.Next()
	if !s.Ok() {
		return 0, nil, s
	}
	if !ok {
		if top.kind == frameRoot {
			if top.stats.Statements == 0 {
				return 0, nil, status.Errorf(status.ParseError, "No valid SQL to run")
			}
			return outcomeReturnResult, top.current, status.OK()
		}
		if top.emittedRows {
			return 0, nil, status.Errorf(status.SchemaMismatch, "module %s emitted rows: modules must define, not query", top.moduleKey)
		}
		e.included[top.moduleKey] = true
		return outcomeFrameDone, nil, status.OK()
	}

	if top.current != nil {
		if !top.current.IsDone() {
			if s := drain(top.current); !s.Ok() {
				top.current.Close()
				top.current = nil
				return 0, nil, s
			}
		}
		top.current.Close()
		top.current = nil
	}

	if stmt.Kind == sqlparse.KindInclude {
		return e.handleInclude(top, stmt.IncludeKey)
	}

	sqlToRun := stmt.Expanded
	original := stmt.Original
	if stmt.Kind != sqlparse.KindSqliteSQL {
		if s := e.dispatchNative(stmt); !s.Ok() {
			return 0, nil, s
		}
		sqlToRun = "SELECT 0 WHERE 0"
	}

	prepared, s := e.wrapper.PrepareWithOriginal(sqlToRun, original)
	if !s.Ok() {
		return 0, nil, s
	}
	res, s := prepared.Step(context.Background())
	if !s.Ok() {
		prepared.Close()
		return 0, nil, s
	}
	if res == engine.StepRow {
		top.emittedRows = true
	}
	top.current = prepared
	top.stats.Statements++
	return outcomeContinue, nil, status.OK()
}

func (e *Engine) handleInclude(top *frame, key string) (outcome, *engine.PreparedStatement, status.Status) {
	if IsWildcard(key) {
		keys, s := e.modules.ResolveWildcard(key)
		if !s.Ok() {
			return 0, nil, s
		}
		e.frames = append(e.frames, &frame{kind: frameWildcard, pending: keys})
		return outcomeContinue, nil, status.OK()
	}
	if e.included[key] {
		return outcomeContinue, nil, status.OK()
	}
	body, s := e.modules.Resolve(key)
	if !s.Ok() {
		return 0, nil, s
	}
	e.frames = append(e.frames, &frame{kind: frameInclude, sql: body, moduleKey: key})
	return outcomeContinue, nil, status.OK()
}
