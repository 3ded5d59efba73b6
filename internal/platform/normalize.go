package platform

import "strings"

// osMap maps raw host OS identifiers to canonical names.
// Unlisted values resolve to OSLinux.
var osMap = map[string]string{
	"windows": OSWindows,
	"win32":   OSWindows,
	"darwin":  OSMacOS,
	"macos":   OSMacOS,
	"linux":   OSLinux,
}

// archMap maps raw host architecture identifiers to canonical names.
// Unlisted values resolve to ArchX64.
var archMap = map[string]string{
	"amd64":   ArchX64,
	"x86_64":  ArchX64,
	"x64":     ArchX64,
	"arm64":   ArchARM64,
	"aarch64": ArchARM64,
	"386":     ArchX86,
	"i386":    ArchX86,
	"i686":    ArchX86,
	"x86":     ArchX86,
}

// familyMap maps distribution names to their canonical family names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
}

// Resolve maps raw host identifiers to a Descriptor. It never fails.
func Resolve(rawOS, rawArch string) Descriptor {
	return Descriptor{
		OS:   resolveOS(rawOS),
		Arch: resolveArch(rawArch),
	}
}

func resolveOS(raw string) string {
	if os, ok := osMap[normalize(raw)]; ok {
		return os
	}
	return OSLinux
}

func resolveArch(raw string) string {
	if arch, ok := archMap[normalize(raw)]; ok {
		return arch
	}
	return ArchX64
}

// normalize lowercases and trims a host identifier.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalize(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}
