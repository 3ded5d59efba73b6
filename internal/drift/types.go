// Package drift compares an install directory against its receipt and the
// release the current build asks for.
package drift

// DriftType represents the type of drift detected
type DriftType int

const (
	DriftOK DriftType = iota
	DriftNotInstalled
	DriftVersionMismatch
	DriftPlatformMismatch
	DriftMissing
	DriftExtra
)

// String returns human-readable drift type name
func (d DriftType) String() string {
	switch d {
	case DriftOK:
		return "OK"
	case DriftNotInstalled:
		return "NOT_INSTALLED"
	case DriftVersionMismatch:
		return "VERSION_MISMATCH"
	case DriftPlatformMismatch:
		return "PLATFORM_MISMATCH"
	case DriftMissing:
		return "MISSING"
	case DriftExtra:
		return "EXTRA"
	default:
		return "UNKNOWN"
	}
}

// Expected is what the current build would install.
type Expected struct {
	Version     string   // e.g. "2.3.1"
	Platform    string   // e.g. "x64.windows"
	Executables []string // paths relative to the install root, e.g. "bin/oidnDenoise.exe"
}

// DriftResult represents a single drift detection result
type DriftResult struct {
	Item      string // "package", "version", "platform" or a path under the install root
	DriftType DriftType
	Expected  string
	Actual    string
}
