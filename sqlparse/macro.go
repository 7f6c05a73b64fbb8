package sqlparse

import (
	"regexp"
	"strings"

	"github.com/k0kubun/perfettosql/status"
)

// MacroDef is a registered macro: a named textual rewrite with formal
// parameters of a closed syntactic category (§4.5, GLOSSARY "Macro").
type MacroDef struct {
	Args       []MacroArg
	ReturnType string
	Body       string
}

// MacroTable holds the process-wide macro registry. Entries may be
// replaced by OR REPLACE (§5 "Shared resources").
type MacroTable struct {
	macros map[string]MacroDef
}

func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]MacroDef)}
}

// Define registers name, failing with DuplicateDefinition unless replace
// is set or no prior definition exists.
func (t *MacroTable) Define(name string, def MacroDef, replace bool) status.Status {
	if _, exists := t.macros[name]; exists && !replace {
		return status.Errorf(status.DuplicateDefinition, "macro %s already exists", name)
	}
	t.macros[name] = def
	return status.OK()
}

func (t *MacroTable) Lookup(name string) (MacroDef, bool) {
	d, ok := t.macros[name]
	return d, ok
}

// macroInvocation matches `name!(` — the opening of a macro invocation.
// Arguments are extracted by paren-matching from the position right
// after the match, not by the regexp itself.
var macroInvocation = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)!\(`)

// ExpandMacros repeatedly rewrites name!(args) invocations in src using
// the definitions in t, until no further invocation is found. Expansion
// is depth-bounded to guard against a macro that (directly or
// indirectly) invokes itself.
func ExpandMacros(src string, t *MacroTable) (string, status.Status) {
	const maxDepth = 64
	cur := src
	for depth := 0; depth < maxDepth; depth++ {
		next, expanded, s := expandOnce(cur, t)
		if !s.Ok() {
			return "", s
		}
		if !expanded {
			return next, status.OK()
		}
		cur = next
	}
	return "", status.Errorf(status.MacroError, "macro expansion did not terminate (possible recursive macro)")
}

func expandOnce(src string, t *MacroTable) (string, bool, status.Status) {
	loc := macroInvocation.FindStringSubmatchIndex(src)
	if loc == nil {
		return src, false, status.OK()
	}
	name := src[loc[2]:loc[3]]
	argsStart := loc[1] // position right after '('
	argsEnd, ok := matchingParen(src, argsStart-1)
	if !ok {
		return "", false, status.Errorf(status.ParseError, "unterminated macro invocation %s!(", name)
	}
	argsText := src[argsStart:argsEnd]

	def, ok := t.Lookup(name)
	if !ok {
		return "", false, status.Errorf(status.MacroError, "unknown macro %s", name)
	}

	rawArgs := splitTopLevelCommas(argsText)
	if len(rawArgs) == 1 && strings.TrimSpace(rawArgs[0]) == "" {
		rawArgs = nil
	}
	if len(rawArgs) != len(def.Args) {
		return "", false, status.Errorf(status.MacroError,
			"macro %s expects %d argument(s), got %d", name, len(def.Args), len(rawArgs))
	}

	body := def.Body
	for i, arg := range def.Args {
		if !IsValidMacroArgCategory(arg.Type) {
			return "", false, status.Errorf(status.MacroError,
				"macro %s argument %s has unknown type %s", name, arg.Name, arg.Type)
		}
		value := strings.TrimSpace(rawArgs[i])
		body = substituteWholeWord(body, arg.Name, value)
	}

	out := src[:loc[0]] + body + src[argsEnd+1:]
	return out, true, status.OK()
}

func matchingParen(s string, openIdx int) (int, bool) {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func substituteWholeWord(body, name, value string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	return re.ReplaceAllLiteralString(body, value)
}
