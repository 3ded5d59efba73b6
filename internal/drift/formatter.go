package drift

import (
	"fmt"
	"strings"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"

// FormatDriftReport formats drift results for user display
func FormatDriftReport(results []DriftResult) string {
	var sb strings.Builder
	sb.Grow(512 + len(results)*128)

	sb.WriteString(rule)
	sb.WriteString("INSTALL STATUS\n")
	sb.WriteString(rule)
	sb.WriteString("\n")

	counts := make(map[DriftType]int)
	for _, r := range results {
		counts[r.DriftType]++
	}

	for _, r := range results {
		if r.DriftType == DriftOK {
			continue
		}
		sb.WriteString(formatDriftEntry(r))
		sb.WriteString("\n")
	}

	if ok := counts[DriftOK]; ok > 0 {
		sb.WriteString(fmt.Sprintf("[OK] ✓\n  %d checks passed\n\n", ok))
	}

	sb.WriteString(rule)
	total := len(results) - counts[DriftOK]
	if total == 0 {
		sb.WriteString("SUMMARY: No drifts detected ✓\n")
	} else {
		sb.WriteString(fmt.Sprintf("SUMMARY: %d drifts detected\n", total))

		var parts []string
		for _, dt := range []DriftType{DriftNotInstalled, DriftVersionMismatch, DriftPlatformMismatch, DriftMissing, DriftExtra} {
			if n := counts[dt]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(strings.ReplaceAll(dt.String(), "_", " "))))
			}
		}
		sb.WriteString("  " + strings.Join(parts, ", ") + "\n")
	}
	sb.WriteString(rule)

	return sb.String()
}

// formatDriftEntry formats a single drift entry
func formatDriftEntry(r DriftResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s\n", r.DriftType, r.Item))
	switch r.DriftType {
	case DriftNotInstalled:
		sb.WriteString("  No install receipt found\n")
		sb.WriteString("  Action: run the rez build with the install target\n")
	case DriftVersionMismatch, DriftPlatformMismatch:
		sb.WriteString(fmt.Sprintf("  Expected: %s\n", r.Expected))
		sb.WriteString(fmt.Sprintf("  Installed: %s\n", r.Actual))
		sb.WriteString("  Action: reinstall\n")
	case DriftMissing:
		sb.WriteString("  Recorded in the receipt but not on disk\n")
		sb.WriteString("  Action: reinstall\n")
	case DriftExtra:
		sb.WriteString("  On disk but not recorded in the receipt\n")
	}

	return sb.String()
}
