package perfettosql

import (
	"strings"

	"github.com/k0kubun/perfettosql/status"
	"github.com/k0kubun/perfettosql/util"
)

// Package is a registered PerfettoSQL module namespace: a fully-
// qualified name (e.g. "slices") and the SQL body text of every module
// key it owns (e.g. "slices.with_context").
type Package struct {
	Name    string
	Modules map[string]string // full module key -> SQL body
}

// ModuleRegistry resolves INCLUDE PERFETTO MODULE keys against the set
// of registered packages, implementing the longest-prefix ownership and
// wildcard-expansion rules of §4.6 "Module inclusion".
type ModuleRegistry struct {
	packages map[string]*Package
}

func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{packages: make(map[string]*Package)}
}

// RegisterPackage adds (or replaces) a package's module set.
func (r *ModuleRegistry) RegisterPackage(name string, modules map[string]string) {
	r.packages[name] = &Package{Name: name, Modules: modules}
}

// owningPackage finds the registered package whose Name is the longest
// dotted prefix of key (or whose Name equals key outright — a package
// may itself be included directly by its own name if it defines a
// module under that exact key).
func (r *ModuleRegistry) owningPackage(key string) (*Package, bool) {
	var best *Package
	for _, pkg := range r.packages {
		if pkg.Name == key || strings.HasPrefix(key, pkg.Name+".") {
			if best == nil || len(pkg.Name) > len(best.Name) {
				best = pkg
			}
		}
	}
	return best, best != nil
}

// isLegacyCommon reports whether key falls under the removed "common"
// package namespace.
func isLegacyCommon(key string) bool {
	return key == "common" || strings.HasPrefix(key, "common.")
}

// Resolve looks up a single (non-wildcard) module key, returning its SQL
// body.
func (r *ModuleRegistry) Resolve(key string) (string, status.Status) {
	if isLegacyCommon(key) {
		return "", status.Errorf(status.UnknownModule,
			"module %s: the common.* package was removed; include the replacement package that now owns this definition", key)
	}
	pkg, ok := r.owningPackage(key)
	if !ok {
		return "", status.Errorf(status.UnknownModule, "module %s: no package owns this module key", key)
	}
	body, ok := pkg.Modules[key]
	if !ok {
		return "", status.Errorf(status.UnknownModule, "module %s: not defined in package %s", key, pkg.Name)
	}
	return body, status.OK()
}

// ResolveWildcard expands a wildcard include key ("*" or "pkg.*") into
// the full, sorted list of module keys it names. Dedup against the
// already-included set happens in the wildcard frame itself.
func (r *ModuleRegistry) ResolveWildcard(key string) ([]string, status.Status) {
	if isLegacyCommon(key) {
		return nil, status.Errorf(status.UnknownModule,
			"module %s: the common.* package was removed; include the replacement package that now owns this definition", key)
	}
	var keys []string
	if key == "*" {
		for _, pkg := range r.packages {
			for k := range util.CanonicalMapIter(pkg.Modules) {
				keys = append(keys, k)
			}
		}
		// packages themselves are visited in map order above; re-sort the
		// combined key set so callers still see a deterministic result.
		keys = sortedKeys(keys)
	} else {
		name := strings.TrimSuffix(key, ".*")
		pkg, ok := r.packages[name]
		if !ok {
			return nil, status.Errorf(status.UnknownModule, "module %s: no package named %s is registered", key, name)
		}
		for k := range util.CanonicalMapIter(pkg.Modules) {
			keys = append(keys, k)
		}
	}
	return keys, status.OK()
}

func sortedKeys(keys []string) []string {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	out := make([]string, 0, len(m))
	for k := range util.CanonicalMapIter(m) {
		out = append(out, k)
	}
	return out
}

// IsWildcard reports whether key is a wildcard include key.
func IsWildcard(key string) bool {
	return key == "*" || strings.HasSuffix(key, ".*")
}
