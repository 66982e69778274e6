// Package testutil holds import guards used by package architecture tests.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports parses the non-test .go files of dir and fails if
// an import path matches forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "forbidden direct imports", reason, viols)
}

// AssertNoTransitiveDependency runs `go list -deps pattern` and fails if a
// dependency matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, out)
	}
	failIfViolations(t, "forbidden transitive dependency", reason, matchLines(string(out), forbidden))
}

// InternalImportForbidden matches module-internal packages.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// StorageImportForbidden matches SQL drivers, database/sql and the
// persistence backends.
func StorageImportForbidden(path string) bool {
	switch {
	case path == "database/sql",
		strings.HasPrefix(path, "modernc.org/sqlite"),
		strings.HasPrefix(path, "github.com/jackc/pgx"),
		strings.Contains(path, "/internal/infra/persistence"):
		return true
	}
	return false
}

// CloudSDKImportForbidden matches the AWS SDK.
func CloudSDKImportForbidden(path string) bool {
	return strings.HasPrefix(path, "github.com/aws/")
}

// Any combines predicates.
func Any(preds ...func(string) bool) func(string) bool {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func matchLines(out string, forbidden func(string) bool) []string {
	var viols []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, `"`)
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s detected (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
