// Package version exists solely so that we can store the version of this application
// in one location, despite needing it in two places within the application.
//
// First, and foremost, we need the version to be available by the main.go driver-package,
// but secondly we also want to report a version word via the HBIOS system-version call.
//
// Duplicating the version number/tag in two places is a recipe for drift and confusion,
// so this internal-package is the result.
package version

import "fmt"

var (
	// version is populated with our release tag, via a Github Action.
	//
	// See .github/build in the source distribution for details.
	version = "unreleased"
)

// HBIOSVersion is the version word we report to the guest, packed as
// major/minor/update/patch nibbles.  We claim RomWBW 3.5.0.0 because that
// is the firmware our synthetic HBIOS mimics - it is deliberately not
// derived from our own release tag.
const HBIOSVersion = 0x3500

// GetVersionBanner returns a banner which is suitable for printing, to show our name,
// version, and the firmware level we emulate.
func GetVersionBanner() string {

	str := fmt.Sprintf("wbwemu %s (HBIOS %X.%X)\n", version,
		(HBIOSVersion>>12)&0x0F, (HBIOSVersion>>8)&0x0F)
	return str
}

// GetVersionString returns our version number as a string.
func GetVersionString() string {
	return version
}
