package domain

import (
	"testing"

	"cardioingest/testutil"
)

// The domain layer is shared by every adapter, so it stays on the standard
// library and never imports implementation packages.
func TestDomainImportsStdlibOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(ip string) bool {
		return testutil.InternalImportForbidden(ip) || testutil.ThirdPartyImportForbidden(ip)
	}, "domain must stay dependency free")
}
