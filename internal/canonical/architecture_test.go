package canonical

import (
	"testing"

	"cardioingest/testutil"
)

func TestNoAdapterImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "canonical must not depend on storage, blob or config packages")
}
