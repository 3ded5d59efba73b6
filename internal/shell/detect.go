package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DetectShell detects the calling shell. It never fails; an undetectable
// shell is reported as ShellUnknown.
func DetectShell(ctx context.Context) *DetectionResult {
	if shell := os.Getenv("SHELL"); shell != "" {
		if shellType := parseShellFromPath(shell); shellType.IsValid() {
			return &DetectionResult{
				Shell:     shellType,
				Method:    "$SHELL environment variable",
				ShellPath: shell,
			}
		}
	}

	if shellType, name := detectFromParentProcess(ctx); shellType.IsValid() {
		return &DetectionResult{
			Shell:     shellType,
			Method:    "parent process",
			ShellPath: name,
		}
	}

	return &DetectionResult{
		Shell:  ShellUnknown,
		Method: "detection failed",
	}
}

// parseShellFromPath extracts the shell type from a shell binary path or
// process name:
//   - /bin/bash -> bash
//   - /usr/local/bin/fish -> fish
//   - C:\...\pwsh.exe -> powershell
func parseShellFromPath(shellPath string) ShellType {
	// filepath.Base only splits on the host separator.
	shellPath = strings.ReplaceAll(shellPath, `\`, "/")
	baseName := strings.ToLower(filepath.Base(shellPath))
	baseName = strings.TrimSuffix(baseName, ".exe")
	baseName = strings.TrimPrefix(baseName, "-") // login shells: "-bash"

	switch baseName {
	case "bash":
		return ShellBash
	case "zsh":
		return ShellZsh
	case "fish":
		return ShellFish
	case "pwsh", "powershell":
		return ShellPowerShell
	default:
		return ShellUnknown
	}
}

// detectFromParentProcess names the shell that started this process.
func detectFromParentProcess(ctx context.Context) (ShellType, string) {
	parent, err := process.NewProcessWithContext(ctx, int32(os.Getppid()))
	if err != nil {
		return ShellUnknown, ""
	}
	name, err := parent.NameWithContext(ctx)
	if err != nil {
		return ShellUnknown, ""
	}
	return parseShellFromPath(name), name
}

// GetSupportedShells returns a list of supported shells
func GetSupportedShells() []ShellType {
	return []ShellType{ShellBash, ShellZsh, ShellFish, ShellPowerShell}
}
