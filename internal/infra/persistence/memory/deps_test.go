package memory

import (
	"strings"
	"testing"

	"afyafamilia/testutil"
)

func TestStoreDependsOnlyOnDomain(t *testing.T) {
	moduleImport := func(path string) bool {
		return strings.HasPrefix(path, "afyafamilia/") && path != "afyafamilia/pkg/domain"
	}
	testutil.AssertNoDirectImports(t, ".", testutil.Any(moduleImport, testutil.StorageImportForbidden),
		"memory state backs every SQL store")
}
