package shell

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rezpkg/oidnpkg/internal/pkgdef"
)

// PathVar is the executable search path variable.
const PathVar = "PATH"

// Append is a path-list variable entry appended on activation.
type Append struct {
	Name  string
	Value string
}

// Alias maps a command name to an executable path.
type Alias struct {
	Name string
	Path string
}

// Environment is what an installed package contributes to a shell.
type Environment struct {
	Appends []Append
	Aliases []Alias // sorted by name
}

// NewEnvironment computes the environment for a package installed under
// installRoot on the given OS. The root variable receives
// <installRoot>/<dir>; PATH and the aliases use <installRoot>/<dir>/<bin>.
func NewEnvironment(def *pkgdef.Definition, installRoot, os string) Environment {
	root := filepath.Join(installRoot, def.Env.Dir)
	bin := filepath.Join(root, def.Env.Bin)

	env := Environment{
		Appends: []Append{
			{Name: def.Env.Root, Value: root},
			{Name: PathVar, Value: bin},
		},
	}

	aliases := def.Aliases(os)
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env.Aliases = append(env.Aliases, Alias{Name: name, Path: filepath.Join(bin, aliases[name])})
	}

	return env
}

// Render produces a script that applies env in the given shell.
func Render(shell ShellType, env Environment) (string, error) {
	var b strings.Builder

	switch shell {
	case ShellBash, ShellZsh:
		for _, a := range env.Appends {
			fmt.Fprintf(&b, "export %s=\"${%s:+${%s}:}%s\"\n", a.Name, a.Name, a.Name, dquoteEscape(a.Value))
		}
		for _, al := range env.Aliases {
			fmt.Fprintf(&b, "alias %s=%s\n", al.Name, squote(al.Path))
		}

	case ShellFish:
		for _, a := range env.Appends {
			if a.Name == PathVar {
				fmt.Fprintf(&b, "set -gx --append PATH %s\n", squoteFish(a.Value))
				continue
			}
			fmt.Fprintf(&b, "set -gx --path --append %s %s\n", a.Name, squoteFish(a.Value))
		}
		for _, al := range env.Aliases {
			fmt.Fprintf(&b, "alias %s %s\n", al.Name, squoteFish(al.Path))
		}

	case ShellPowerShell:
		for _, a := range env.Appends {
			fmt.Fprintf(&b, "$env:%s = (@($env:%s, %s) | Where-Object { $_ }) -join [IO.Path]::PathSeparator\n",
				a.Name, a.Name, squotePS(a.Value))
		}
		for _, al := range env.Aliases {
			fmt.Fprintf(&b, "Set-Alias -Name %s -Value %s\n", al.Name, squotePS(al.Path))
		}

	default:
		return "", &UnsupportedShellError{Shell: shell.String()}
	}

	return b.String(), nil
}

// ActivationCommand returns the line a user evaluates to activate the
// package installed under installRoot.
func ActivationCommand(shell ShellType, installRoot string) (string, error) {
	switch shell {
	case ShellBash, ShellZsh:
		return fmt.Sprintf(`eval "$(oidnpkg activate %s %s)"`, shell, squote(installRoot)), nil
	case ShellFish:
		return fmt.Sprintf("oidnpkg activate %s %s | source", shell, squoteFish(installRoot)), nil
	case ShellPowerShell:
		return fmt.Sprintf("oidnpkg activate %s %s | Out-String | Invoke-Expression", shell, squotePS(installRoot)), nil
	default:
		return "", &UnsupportedShellError{Shell: shell.String()}
	}
}

// dquoteEscape escapes s for use inside a POSIX double-quoted string.
func dquoteEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return r.Replace(s)
}

// squote single-quotes s for POSIX shells.
func squote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// squoteFish single-quotes s for fish, where \ and ' are escapable.
func squoteFish(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "'", `\'`)
	return "'" + r.Replace(s) + "'"
}

// squotePS single-quotes s for PowerShell.
func squotePS(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
