package perfettosql

import (
	"sort"
	"strings"

	"github.com/k0kubun/perfettosql/coltable"
	"github.com/k0kubun/perfettosql/sqlparse"
	"github.com/k0kubun/perfettosql/status"
)

// columnTypeOf maps a declared ArgumentDefinition.Type token to its
// runtime column type, per the §4.6 "Declared-type-to-column-type
// mapping" table. allowBytesLegacy permits BYTES to coerce to Int64;
// callers that don't want the legacy behavior (there are none yet)
// would pass false.
func columnTypeOf(declared string, allowBytesLegacy bool) (coltable.ColumnType, status.Status) {
	switch strings.ToUpper(declared) {
	case "LONG", "BOOL":
		return coltable.ColumnInt, status.OK()
	case "DOUBLE":
		return coltable.ColumnFloat, status.OK()
	case "STRING":
		return coltable.ColumnText, status.OK()
	case "BYTES":
		if allowBytesLegacy {
			return coltable.ColumnInt, status.OK()
		}
		return 0, status.Errorf(status.SchemaMismatch, "BYTES is not a valid column type here")
	case "ANY":
		return 0, status.Errorf(status.SchemaMismatch, "ANY is not allowed as a table column type")
	default:
		return 0, status.Errorf(status.SchemaMismatch, "unknown declared type %q", declared)
	}
}

// validColumnName reports whether name is non-empty, starts with a
// letter or underscore, and contains only alphanumerics and
// underscores thereafter (§4.6 CREATE PERFETTO TABLE).
func validColumnName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// validateSchema checks actual (a prepared SELECT's output column
// names, in order) against an optional declared schema, per §4.6
// "Schema validation". On success it returns declared trimmed to
// actual's order (or, if declared is empty, a nil schema meaning
// "infer every column").
func validateSchema(actual []string, declared []sqlparse.ArgumentDefinition) ([]sqlparse.ArgumentDefinition, status.Status) {
	seen := make(map[string]bool, len(actual))
	var dupes []string
	for _, name := range actual {
		if !validColumnName(name) {
			return nil, status.Errorf(status.SchemaMismatch, "invalid column name %q", name)
		}
		if seen[name] {
			dupes = append(dupes, name)
		}
		seen[name] = true
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return nil, status.Errorf(status.SchemaMismatch, "multiple columns are named: %s", strings.Join(dupes, ", "))
	}
	if len(declared) == 0 {
		return nil, status.OK()
	}

	declaredByName := make(map[string]sqlparse.ArgumentDefinition, len(declared))
	for _, d := range declared {
		declaredByName[d.Name] = d
	}

	var missingFromQuery []string
	for _, d := range declared {
		if !seen[d.Name] {
			missingFromQuery = append(missingFromQuery, d.Name)
		}
	}
	var missingFromSchema []string
	for _, name := range actual {
		if _, ok := declaredByName[name]; !ok {
			missingFromSchema = append(missingFromSchema, name)
		}
	}
	if len(missingFromQuery) > 0 || len(missingFromSchema) > 0 {
		sort.Strings(missingFromQuery)
		sort.Strings(missingFromSchema)
		var b strings.Builder
		b.WriteString("schema mismatch:")
		if len(missingFromQuery) > 0 {
			b.WriteString(" the following columns are declared in the schema, but do not exist: ")
			b.WriteString(strings.Join(missingFromQuery, ", "))
		}
		if len(missingFromSchema) > 0 {
			if len(missingFromQuery) > 0 {
				b.WriteString("; and")
			}
			b.WriteString(" the following columns exist, but are not declared: ")
			b.WriteString(strings.Join(missingFromSchema, ", "))
		}
		return nil, status.Errorf(status.SchemaMismatch, "%s", b.String())
	}

	ordered := make([]sqlparse.ArgumentDefinition, len(actual))
	for i, name := range actual {
		ordered[i] = declaredByName[name]
	}
	return ordered, status.OK()
}
