// Package shell renders the environment an installed OIDN package exposes to
// its consumers: the root variable, the PATH entry and the command aliases.
//
// Scripts are produced for bash, zsh, fish and PowerShell and are meant to
// be evaluated by the caller:
//
//	eval "$(oidnpkg activate bash /path/to/install)"
//	oidnpkg activate fish /path/to/install | source
//	oidnpkg activate powershell C:\rez\oidn | Out-String | Invoke-Expression
//
// Variables are appended to, never replaced, so several packages can share
// PATH. Aliases point at <root>/<dir>/<bin>/<executable>.
//
// # Shell Detection
//
// When no shell is named, detection tries $SHELL first and then the name of
// the parent process (via gopsutil), which is how PowerShell on Windows is
// found.
package shell
