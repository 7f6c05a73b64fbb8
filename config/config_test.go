package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DefaultLimit != 0 || c.ModuleRoots != nil {
		t.Fatalf("expected zero value config, got %+v", c)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := "module_roots:\n  - /a\n  - /b\ndefault_sort: ts\ndefault_limit: 100\npackages:\n  slices: /a/slices\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.ModuleRoots) != 2 || c.ModuleRoots[0] != "/a" {
		t.Fatalf("unexpected module roots: %v", c.ModuleRoots)
	}
	if c.DefaultSort != "ts" || c.DefaultLimit != 100 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Packages["slices"] != "/a/slices" {
		t.Fatalf("unexpected packages: %v", c.Packages)
	}
}

func TestMerge(t *testing.T) {
	base := Config{ModuleRoots: []string{"/a"}, DefaultLimit: 10}
	override := Config{DefaultSort: "ts"}
	merged := Merge(base, override)
	if len(merged.ModuleRoots) != 1 || merged.ModuleRoots[0] != "/a" {
		t.Fatalf("expected base module roots to survive, got %v", merged.ModuleRoots)
	}
	if merged.DefaultSort != "ts" || merged.DefaultLimit != 10 {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}

func TestResolveModulePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "with_context.sql"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := Config{Packages: map[string]string{"slices": dir}}
	path, ok := c.ResolveModulePath("slices", "with_context")
	if !ok || path != filepath.Join(dir, "with_context.sql") {
		t.Fatalf("unexpected resolution: %v %v", path, ok)
	}
	if _, ok := c.ResolveModulePath("unknown", "x"); ok {
		t.Fatalf("expected unresolved package to fail")
	}
}
