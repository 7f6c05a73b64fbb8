// Package config loads the CLI's YAML configuration: module search
// roots, the package name -> directory mapping used by INCLUDE PERFETTO
// MODULE resolution, and default __sort/__limit suffixes.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors the shape of the teacher's GeneratorConfig: a flat,
// YAML-decoded struct with sensible zero values when no file is given.
type Config struct {
	// ModuleRoots are directories searched, in order, for
	// `<package>/<module>.sql` files.
	ModuleRoots []string `yaml:"module_roots"`

	// Packages maps a package name to the directory that contains its
	// modules (used as given, not joined to a root), for packages that
	// don't live at `<root>/<package>/`.
	Packages map[string]string `yaml:"packages"`

	// DefaultSort and DefaultLimit seed a session's implicit
	// `__sort`/`__limit`, each when a query leaves that column
	// unconstrained.
	DefaultSort  string `yaml:"default_sort"`
	DefaultLimit int    `yaml:"default_limit"`
}

// Load reads and decodes a config file. An empty path returns a zero
// Config, matching ParseGeneratorConfig's "no file given" behavior.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return parse(buf)
}

func parse(buf []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}

// Merge overlays override onto base, override taking precedence field
// by field (mirrors the teacher's MergeGeneratorConfig).
func Merge(base, override Config) Config {
	result := base
	if override.ModuleRoots != nil {
		result.ModuleRoots = override.ModuleRoots
	}
	if override.Packages != nil {
		if result.Packages == nil {
			result.Packages = make(map[string]string, len(override.Packages))
		}
		for k, v := range override.Packages {
			result.Packages[k] = v
		}
	}
	if override.DefaultSort != "" {
		result.DefaultSort = override.DefaultSort
	}
	if override.DefaultLimit != 0 {
		result.DefaultLimit = override.DefaultLimit
	}
	return result
}

// ResolveModulePath returns the filesystem path for a dotted module key
// (e.g. "slices.with_context") given the package's configured directory,
// falling back to `<root>/<package-dir>/<module>.sql`.
func (c Config) ResolveModulePath(pkg, module string) (string, bool) {
	dir, ok := c.Packages[pkg]
	if ok {
		return filepath.Join(dir, module+".sql"), true
	}
	for _, root := range c.ModuleRoots {
		candidate := filepath.Join(root, pkg, module+".sql")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// SplitIncludeDirs parses a shell-quoted, space-separated list of module
// search roots, the form `--include-dirs` accepts on the command line.
func SplitIncludeDirs(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
