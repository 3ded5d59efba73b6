package drift

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rezpkg/oidnpkg/internal/transaction"
)

// DetectDrift compares the install root against its receipt and the
// expected release. A nil receipt yields a single DriftNotInstalled result.
//
// Results are ordered: version, platform, receipt entries (sorted),
// expected executables, then extra entries found on disk.
func DetectDrift(expected Expected, receipt *transaction.Receipt, installRoot string) ([]DriftResult, error) {
	if receipt == nil {
		return []DriftResult{{Item: "package", DriftType: DriftNotInstalled, Expected: expected.Version}}, nil
	}

	results := []DriftResult{
		compare("version", expected.Version, receipt.PackageVer, DriftVersionMismatch),
		compare("platform", expected.Platform, receipt.Platform, DriftPlatformMismatch),
	}

	recorded := make(map[string]bool, len(receipt.Entries))
	entries := append([]string{}, receipt.Entries...)
	sort.Strings(entries)
	for _, name := range entries {
		recorded[name] = true
		results = append(results, presence(installRoot, name))
	}

	for _, exe := range expected.Executables {
		results = append(results, presence(installRoot, exe))
	}

	onDisk, err := os.ReadDir(installRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read install root: %w", err)
	}
	for _, e := range onDisk {
		if !recorded[e.Name()] {
			results = append(results, DriftResult{Item: e.Name(), DriftType: DriftExtra, Actual: "present"})
		}
	}

	return results, nil
}

// HasDrift reports whether any result is not DriftOK.
func HasDrift(results []DriftResult) bool {
	for _, r := range results {
		if r.DriftType != DriftOK {
			return true
		}
	}
	return false
}

func compare(item, expected, actual string, mismatch DriftType) DriftResult {
	r := DriftResult{Item: item, Expected: expected, Actual: actual, DriftType: DriftOK}
	if expected != "" && expected != actual {
		r.DriftType = mismatch
	}
	return r
}

func presence(root, rel string) DriftResult {
	r := DriftResult{Item: rel, Expected: "present", Actual: "present", DriftType: DriftOK}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		r.Actual = "missing"
		r.DriftType = DriftMissing
	}
	return r
}
