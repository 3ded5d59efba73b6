package release

import (
	"fmt"
	"strings"

	"github.com/rezpkg/oidnpkg/internal/platform"
)

// Default templates for OIDN GitHub releases. Placeholders are
// {major}, {minor}, {patch}, {version}, {arch}, {os}, {ext} and, in the URL
// template only, {filename}.
const (
	DefaultFileNameTemplate = "oidn-{major}.{minor}.{patch}.{arch}.{os}.{ext}"
	DefaultURLTemplate      = "https://github.com/RenderKit/oidn/releases/download/v{major}.{minor}.{patch}/{filename}"
)

// Format is an archive format.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// IsValid reports whether f is a known archive format.
func (f Format) IsValid() bool {
	switch f {
	case FormatZip, FormatTarGz:
		return true
	default:
		return false
	}
}

// Extension returns the filename extension, without the leading dot.
func (f Format) Extension() string {
	return string(f)
}

// DefaultFormats lists the archive formats published per OS. Only Windows
// archives are handled today.
func DefaultFormats() map[string]Format {
	return map[string]Format{
		platform.OSWindows: FormatZip,
	}
}

// Templates holds the filename and URL templates.
type Templates struct {
	FileName string
	URL      string
}

// DefaultTemplates returns the templates for the upstream GitHub releases.
func DefaultTemplates() Templates {
	return Templates{
		FileName: DefaultFileNameTemplate,
		URL:      DefaultURLTemplate,
	}
}

// Artifact is a fully resolved release archive.
type Artifact struct {
	Coordinate Coordinate
	Platform   platform.Descriptor
	Format     Format
	FileName   string // e.g. "oidn-2.3.1.x64.windows.zip"
	URL        string
}

// ExtractedDir returns the top-level directory name the archive unpacks to,
// which is the archive filename without its extension.
func (a Artifact) ExtractedDir() string {
	return strings.TrimSuffix(a.FileName, "."+a.Format.Extension())
}

// NewArtifact renders the templates for the given coordinate, platform and
// format.
func NewArtifact(tmpl Templates, c Coordinate, p platform.Descriptor, f Format) (Artifact, error) {
	if !f.IsValid() {
		return Artifact{}, fmt.Errorf("unsupported archive format %q", f)
	}
	if tmpl.FileName == "" || tmpl.URL == "" {
		return Artifact{}, fmt.Errorf("filename and URL templates are required")
	}

	vars := []string{
		"{major}", fmt.Sprint(c.Major),
		"{minor}", fmt.Sprint(c.Minor),
		"{patch}", fmt.Sprint(c.Patch),
		"{version}", c.String(),
		"{arch}", p.Arch,
		"{os}", p.OS,
		"{ext}", f.Extension(),
	}

	fileName := strings.NewReplacer(vars...).Replace(tmpl.FileName)
	if strings.ContainsAny(fileName, `/\`) {
		return Artifact{}, fmt.Errorf("filename template produced a path: %q", fileName)
	}
	if !strings.HasSuffix(fileName, "."+f.Extension()) {
		return Artifact{}, fmt.Errorf("filename %q does not end in .%s", fileName, f.Extension())
	}

	url := strings.NewReplacer(append(vars, "{filename}", fileName)...).Replace(tmpl.URL)

	return Artifact{
		Coordinate: c,
		Platform:   p,
		Format:     f,
		FileName:   fileName,
		URL:        url,
	}, nil
}
