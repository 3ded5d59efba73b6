// Package platform resolves the host operating system and architecture into
// the canonical names used by OIDN release archives.
//
// Detection reads runtime.GOOS/GOARCH and, where available, gopsutil host
// information. Resolution is a pure table lookup that never fails: anything
// unrecognised falls back to "linux" and "x64". The resolved information is
// also exposed to package descriptors as a read-only Lua table.
package platform

import "context"

// Canonical operating system names used in release filenames.
const (
	OSWindows = "windows"
	OSLinux   = "linux"
	OSMacOS   = "macos"
)

// Canonical architecture names used in release filenames.
const (
	ArchX64   = "x64"
	ArchARM64 = "arm64"
	ArchX86   = "x86"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"
	FamilyRHEL    = "rhel"
	FamilyFedora  = "fedora"
	FamilySUSE    = "suse"
	FamilyArch    = "arch"
	FamilyAlpine  = "alpine"
	FamilyUnknown = "unknown"
)

// Descriptor is the resolved (os, arch) pair used to select archive naming
// and format.
type Descriptor struct {
	OS   string // "windows", "linux", "macos"
	Arch string // "x64", "arm64", "x86"
}

// String returns "arch.os", the order used in release filenames.
func (d Descriptor) String() string {
	return d.Arch + "." + d.OS
}

// Info contains platform detection information.
type Info struct {
	OS      string // canonical OS (see Resolve)
	Arch    string // canonical arch (see Resolve)
	OSRaw   string // host value, e.g. "darwin"
	ArchRaw string // host value, e.g. "x86_64" or "AMD64"
	Distro  string // distro ID (Linux only, e.g. "ubuntu")
	Family  string // canonical family (Linux only)
	Version string // distro version (Linux only)
}

// Descriptor returns the (os, arch) pair for this host.
func (i *Info) Descriptor() Descriptor {
	return Descriptor{OS: i.OS, Arch: i.Arch}
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == OSWindows
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == OSLinux
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == OSMacOS
}

// IsX64 returns true if the architecture is x86-64.
func (i *Info) IsX64() bool {
	return i.Arch == ArchX64
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == ArchARM64
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. It is used when the platform is known
// ahead of time, e.g. when resolving a release for another host.
type StaticDetector struct {
	Info Info
}

// Detect returns a copy of the configured Info.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := s.Info
	return &info, nil
}
