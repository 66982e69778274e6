package archive

import (
	"strings"
	"testing"

	"afyafamilia/testutil"
)

func TestArchiveUsesBlobFacade(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(
		testutil.CloudSDKImportForbidden,
		testutil.StorageImportForbidden,
		func(p string) bool { return strings.Contains(p, "/internal/infra/blob") },
	), "archive writes through blob.Store")
}
