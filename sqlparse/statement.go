// Package sqlparse implements the extended-SQL parser and preprocessor
// (C5): splitting a SQL source into a lazy sequence of statements,
// classifying PerfettoSQL's native DDL extensions, and expanding
// name!(args) macro invocations.
package sqlparse

// Kind tags the closed set of statement variants the parser can
// produce (§4.5). The set is closed and parser-produced, so a tagged
// union (rather than a dispatch hierarchy) is the right shape — see
// spec §9 "Dynamic dispatch of statement variants".
type Kind int

const (
	KindSqliteSQL Kind = iota
	KindCreateFunction
	KindCreateTable
	KindCreateView
	KindCreateMacro
	KindCreateIndex
	KindDropIndex
	KindInclude
)

func (k Kind) String() string {
	switch k {
	case KindSqliteSQL:
		return "SqliteSql"
	case KindCreateFunction:
		return "CreateFunction"
	case KindCreateTable:
		return "CreateTable"
	case KindCreateView:
		return "CreateView"
	case KindCreateMacro:
		return "CreateMacro"
	case KindCreateIndex:
		return "CreateIndex"
	case KindDropIndex:
		return "DropIndex"
	case KindInclude:
		return "Include"
	default:
		return "Unknown"
	}
}

// ArgumentDefinition is a (name, type) pair, used both for function/
// table declared schemas and for RETURNS TABLE(...) column lists.
type ArgumentDefinition struct {
	Name string
	Type string // one of LONG, BOOL, DOUBLE, STRING, BYTES, ANY (§4.6 schema validation table)
}

// MacroArg is a macro formal parameter: a name plus one of the closed
// syntactic categories §4.5 allows.
type MacroArg struct {
	Name string
	Type string
}

// macroArgCategories is the closed set of syntactic categories a macro
// argument's type may name (§4.5).
var macroArgCategories = map[string]bool{
	"ColumnNameList":       true,
	"_ProjectionFragment":  true,
	"_TableNameList":       true,
	"ColumnName":           true,
	"Expr":                 true,
	"TableOrSubquery":      true,
}

// IsValidMacroArgCategory reports whether typ is one of the closed
// macro-argument syntactic categories.
func IsValidMacroArgCategory(typ string) bool {
	return macroArgCategories[typ]
}

// Statement is one parsed statement. Only the fields relevant to Kind
// are populated; this mirrors the original's tagged-union variant
// table in §4.5 directly rather than modeling each variant as its own
// Go type, since the parser — not a user — produces every instance and
// the dispatch in perfettosql is a single closed switch.
type Statement struct {
	Kind Kind

	// Original is the untouched, pre-macro-expansion source text of the
	// statement, used for traceback offsets.
	Original string

	// Expanded is Original after macro expansion; this is the text
	// actually classified and, for KindSqliteSQL, the text forwarded to
	// the underlying engine.
	Expanded string

	Replace bool // OR REPLACE was present

	// CreateFunction
	FuncName     string
	FuncArgs     []ArgumentDefinition
	ReturnScalar string               // non-empty for scalar RETURNS type
	ReturnTable  []ArgumentDefinition // non-nil for RETURNS TABLE(cols)
	Body         string
	AliasTarget  string // USING <existing_function>, empty otherwise

	// CreateTable / CreateView
	Name           string
	DeclaredSchema []ArgumentDefinition // optional, nil if not declared
	ViewFullText   string               // not set by the parser; always empty

	// CreateMacro
	MacroName       string
	MacroArgs       []MacroArg
	MacroReturnType string

	// CreateIndex / DropIndex
	IndexName   string
	TableName   string
	ColumnNames []string

	// Include
	IncludeKey string
}
