package sqlparse

import (
	"regexp"
	"strings"

	"github.com/k0kubun/perfettosql/status"
)

// Parser yields Statement values one at a time from a single SQL
// source, in source order. It is constructed lazily per-frame by the
// PerfettoSQL engine (§3.5) rather than parsing the whole source up
// front, but since statement boundaries are decided purely by scanning
// (no recursive grammar), splitting the whole source once at
// construction time and handing statements out of that queue is
// observably identical and far simpler.
type Parser struct {
	macros *MacroTable
	queue  []string
	pos    int
}

// NewParser constructs a Parser over src. macros is consulted (and may
// be mutated by later CREATE MACRO statements executed in between Next
// calls — see the comment on Next) while expanding name!(args)
// invocations.
func NewParser(src string, macros *MacroTable) *Parser {
	return &Parser{macros: macros, queue: splitTopLevelStatements(src)}
}

// Next returns the next statement, or ok=false once the source is
// exhausted. Macro expansion happens lazily, statement by statement, so
// a macro defined by an earlier statement in the same source is visible
// to a later one.
func (p *Parser) Next() (stmt *Statement, ok bool, s status.Status) {
	if p.pos >= len(p.queue) {
		return nil, false, status.OK()
	}
	raw := p.queue[p.pos]
	p.pos++

	expanded, es := ExpandMacros(raw, p.macros)
	if !es.Ok() {
		return nil, false, es
	}

	parsed, ps := classify(strings.TrimSpace(expanded))
	if !ps.Ok() {
		return nil, false, ps
	}
	parsed.Original = raw
	parsed.Expanded = strings.TrimSpace(expanded)
	return parsed, true, status.OK()
}

var (
	reCreateHeader = regexp.MustCompile(`(?is)^CREATE\s+(OR\s+REPLACE\s+)?PERFETTO\s+(TABLE|VIEW|FUNCTION|MACRO|INDEX)\s+(.*)$`)
	reDropIndex    = regexp.MustCompile(`(?is)^DROP\s+PERFETTO\s+INDEX\s+(\S+)\s+ON\s+(\S+)\s*$`)
	reInclude      = regexp.MustCompile(`(?is)^INCLUDE\s+PERFETTO\s+MODULE\s+(.+?)\s*$`)
)

func classify(text string) (*Statement, status.Status) {
	if m := reInclude.FindStringSubmatch(text); m != nil {
		key := strings.Trim(strings.TrimSpace(m[1]), `'"`)
		return &Statement{Kind: KindInclude, IncludeKey: key}, status.OK()
	}
	if m := reDropIndex.FindStringSubmatch(text); m != nil {
		return &Statement{
			Kind:      KindDropIndex,
			IndexName: unquoteIdent(m[1]),
			TableName: unquoteIdent(m[2]),
		}, status.OK()
	}
	if m := reCreateHeader.FindStringSubmatch(text); m != nil {
		replace := strings.TrimSpace(m[1]) != ""
		rest := m[3]
		switch strings.ToUpper(m[2]) {
		case "TABLE":
			return parseCreateTableOrView(rest, replace, KindCreateTable)
		case "VIEW":
			return parseCreateTableOrView(rest, replace, KindCreateView)
		case "FUNCTION":
			return parseCreateFunction(rest, replace)
		case "MACRO":
			return parseCreateMacro(rest, replace)
		case "INDEX":
			return parseCreateIndex(rest, replace)
		}
	}
	return &Statement{Kind: KindSqliteSQL}, status.OK()
}

func unquoteIdent(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`+"`")
}

// takeIdentifier consumes a leading identifier token from s, returning
// it and the remainder.
func takeIdentifier(s string) (ident, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	if i == 0 {
		return "", s, false
	}
	return s[:i], s[i:], true
}

// takeKeyword consumes a case-insensitive leading keyword, returning the
// remainder and whether it matched.
func takeKeyword(s, kw string) (rest string, ok bool) {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if len(trimmed) < len(kw) {
		return s, false
	}
	if !strings.EqualFold(trimmed[:len(kw)], kw) {
		return s, false
	}
	remainder := trimmed[len(kw):]
	if len(remainder) > 0 {
		c := remainder[0]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '(' {
			return s, false
		}
	}
	return remainder, true
}

// takeParenGroup, given s starting (after whitespace) with '(', returns
// the text between the matching parens and the remainder after ')'.
func takeParenGroup(s string) (inner, rest string, ok bool) {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '(' {
		return "", s, false
	}
	end, found := matchingParen(trimmed, 0)
	if !found {
		return "", s, false
	}
	return trimmed[1:end], trimmed[end+1:], true
}

func parseArgList(raw string) []ArgumentDefinition {
	parts := splitTopLevelCommas(raw)
	var args []ArgumentDefinition
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		typ := ""
		if len(fields) > 1 {
			typ = strings.ToUpper(strings.Join(fields[1:], " "))
		}
		args = append(args, ArgumentDefinition{Name: name, Type: typ})
	}
	return args
}

func parseCreateTableOrView(rest string, replace bool, kind Kind) (*Statement, status.Status) {
	name, rest, ok := takeIdentifier(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected a name after CREATE PERFETTO TABLE/VIEW")
	}
	var schema []ArgumentDefinition
	if inner, r2, hasSchema := takeParenGroup(rest); hasSchema {
		schema = parseArgList(inner)
		rest = r2
	}
	rest, ok = takeKeyword(rest, "AS")
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected AS in CREATE PERFETTO TABLE/VIEW %s", name)
	}
	body := strings.TrimSpace(rest)
	return &Statement{
		Kind:           kind,
		Replace:        replace,
		Name:           name,
		DeclaredSchema: schema,
		Body:           body,
	}, status.OK()
}

func parseCreateFunction(rest string, replace bool) (*Statement, status.Status) {
	name, rest, ok := takeIdentifier(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected a function name after CREATE PERFETTO FUNCTION")
	}
	inner, rest, ok := takeParenGroup(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected an argument list for function %s", name)
	}
	args := parseArgList(inner)

	rest, ok = takeKeyword(rest, "RETURNS")
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected RETURNS in CREATE PERFETTO FUNCTION %s", name)
	}
	stmt := &Statement{Kind: KindCreateFunction, Replace: replace, FuncName: name, FuncArgs: args}

	trimmed := strings.TrimLeft(rest, " \t\r\n")
	if tableRest, isTable := takeKeyword(trimmed, "TABLE"); isTable {
		innerCols, r2, hasCols := takeParenGroup(tableRest)
		if !hasCols {
			return nil, status.Errorf(status.ParseError, "expected column list in RETURNS TABLE for function %s", name)
		}
		stmt.ReturnTable = parseArgList(innerCols)
		rest = r2
	} else {
		typ, r2, ok := takeIdentifier(trimmed)
		if !ok {
			return nil, status.Errorf(status.ParseError, "expected a return type for function %s", name)
		}
		stmt.ReturnScalar = strings.ToUpper(typ)
		rest = r2
	}

	if bodyRest, isAs := takeKeyword(rest, "AS"); isAs {
		stmt.Body = strings.TrimSpace(bodyRest)
		return stmt, status.OK()
	}
	if usingRest, isUsing := takeKeyword(rest, "USING"); isUsing {
		target, _, ok := takeIdentifier(usingRest)
		if !ok {
			return nil, status.Errorf(status.ParseError, "expected a target function name after USING")
		}
		stmt.AliasTarget = target
		return stmt, status.OK()
	}
	return nil, status.Errorf(status.ParseError, "expected AS or USING in CREATE PERFETTO FUNCTION %s", name)
}

func parseCreateMacro(rest string, replace bool) (*Statement, status.Status) {
	name, rest, ok := takeIdentifier(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected a macro name after CREATE PERFETTO MACRO")
	}
	inner, rest, ok := takeParenGroup(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected an argument list for macro %s", name)
	}
	// Macro argument categories are case-sensitive names (Expr,
	// ColumnName, ...), so the type is kept as written rather than
	// uppercased the way parseArgList does for column types.
	var macroArgs []MacroArg
	for _, part := range splitTopLevelCommas(inner) {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		macroArgs = append(macroArgs, MacroArg{Name: fields[0], Type: strings.Join(fields[1:], " ")})
	}

	rest, ok = takeKeyword(rest, "RETURNS")
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected RETURNS in CREATE PERFETTO MACRO %s", name)
	}
	retType, rest, ok := takeIdentifier(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected a return type for macro %s", name)
	}
	rest, ok = takeKeyword(rest, "AS")
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected AS in CREATE PERFETTO MACRO %s", name)
	}
	return &Statement{
		Kind:            KindCreateMacro,
		Replace:         replace,
		MacroName:       name,
		MacroArgs:       macroArgs,
		MacroReturnType: retType,
		Body:            strings.TrimSpace(rest),
	}, status.OK()
}

func parseCreateIndex(rest string, replace bool) (*Statement, status.Status) {
	name, rest, ok := takeIdentifier(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected an index name after CREATE PERFETTO INDEX")
	}
	rest, ok = takeKeyword(rest, "ON")
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected ON in CREATE PERFETTO INDEX %s", name)
	}
	table, rest, ok := takeIdentifier(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected a table name in CREATE PERFETTO INDEX %s", name)
	}
	inner, _, ok := takeParenGroup(rest)
	if !ok {
		return nil, status.Errorf(status.ParseError, "expected a column list in CREATE PERFETTO INDEX %s", name)
	}
	var cols []string
	for _, c := range splitTopLevelCommas(inner) {
		c = strings.TrimSpace(c)
		if c != "" {
			cols = append(cols, c)
		}
	}
	return &Statement{
		Kind:        KindCreateIndex,
		Replace:     replace,
		IndexName:   name,
		TableName:   table,
		ColumnNames: cols,
	}, status.OK()
}
