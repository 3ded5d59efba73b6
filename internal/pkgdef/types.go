package pkgdef

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rezpkg/oidnpkg/internal/release"
)

// FileName is the descriptor file looked up in the rez source directory.
const FileName = "package.lua"

// Definition is a parsed package descriptor.
type Definition struct {
	Name        string                       `json:"name"`
	Version     string                       `json:"version"`
	Description string                       `json:"description,omitempty"`
	Authors     []string                     `json:"authors,omitempty"`
	UUID        string                       `json:"uuid"`
	Release     Release                      `json:"release"`
	Env         Env                          `json:"env"`
	Executables map[string]map[string]string `json:"executables,omitempty"`
	Verify      *Verify                      `json:"verify,omitempty"`
}

// Release holds the upstream naming templates and archive formats per OS.
type Release struct {
	FileName string                    `json:"filename"`
	URL      string                    `json:"url"`
	Archives map[string]release.Format `json:"archives,omitempty"`
}

// Env describes the environment exposed to consumers of the installed
// package.
type Env struct {
	Root string `json:"root"` // variable that receives the install root, e.g. OIDN_ROOT
	Dir  string `json:"dir"`  // install subdirectory, e.g. "oidn"
	Bin  string `json:"bin"`  // executables subdirectory of Dir, e.g. "bin"
}

// Verify holds optional verification material.
type Verify struct {
	// SHA256 maps archive filenames to hex digests.
	SHA256   map[string]string `json:"sha256,omitempty"`
	PGP      *PGP              `json:"pgp,omitempty"`
	Minisign *Minisign         `json:"minisign,omitempty"`
}

// PGP configures detached OpenPGP signature checks.
type PGP struct {
	// Signature is a URL template; {url} expands to the archive URL.
	Signature string `json:"signature"`
	// Keyring is a path relative to the package source directory.
	Keyring string `json:"keyring"`
}

// Minisign configures minisign signature checks.
type Minisign struct {
	// Signature is a URL template; {url} expands to the archive URL.
	Signature string `json:"signature"`
	// PublicKey is the base64 key line of a minisign .pub file.
	PublicKey string `json:"public_key"`
}

// Templates returns the release naming templates.
func (d *Definition) Templates() release.Templates {
	return release.Templates{
		FileName: d.Release.FileName,
		URL:      d.Release.URL,
	}
}

// FormatFor returns the archive format published for os, if any.
func (d *Definition) FormatFor(os string) (release.Format, bool) {
	f, ok := d.Release.Archives[os]
	return f, ok
}

// SupportedOS returns the sorted OS names with a declared archive format.
func (d *Definition) SupportedOS() []string {
	oses := make([]string, 0, len(d.Release.Archives))
	for os := range d.Release.Archives {
		oses = append(oses, os)
	}
	sort.Strings(oses)
	return oses
}

// Aliases returns the alias -> executable file mapping for os. The result is
// never nil.
func (d *Definition) Aliases(os string) map[string]string {
	aliases := make(map[string]string, len(d.Executables[os]))
	for alias, file := range d.Executables[os] {
		aliases[alias] = file
	}
	return aliases
}

// SignatureURL expands a signature template against an archive URL.
func SignatureURL(template, archiveURL string) string {
	return strings.ReplaceAll(template, "{url}", archiveURL)
}

// ValidationError represents a descriptor validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}
