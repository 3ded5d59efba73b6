// Package builder fetches, unpacks and installs the OIDN release archive
// for a rez build.
//
// A Manager is configured once per invocation. Build makes sure the
// archive is present in the build directory and unpacked there; Install
// moves the unpacked tree into a clean <install>/<dir> and writes a
// receipt. Run drives both from the rez build targets.
package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rezpkg/oidnpkg/internal/archive"
	"github.com/rezpkg/oidnpkg/internal/fetch"
	"github.com/rezpkg/oidnpkg/internal/logging"
	"github.com/rezpkg/oidnpkg/internal/pkgdef"
	"github.com/rezpkg/oidnpkg/internal/platform"
	"github.com/rezpkg/oidnpkg/internal/release"
	"github.com/rezpkg/oidnpkg/internal/service"
	"github.com/rezpkg/oidnpkg/internal/verify"
)

// TargetInstall is the rez build target that triggers Install.
const TargetInstall = "install"

// ErrNoExtractedDir is returned when the unpacked archive directory is
// missing from the build directory.
var ErrNoExtractedDir = errors.New("extracted archive directory not found")

// UnsupportedPlatformError reports an OS without a published archive.
type UnsupportedPlatformError struct {
	OS        string
	Supported []string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q (supported: %s)", e.OS, strings.Join(e.Supported, ", "))
}

// Downloader fetches a URL into a local file.
type Downloader interface {
	DownloadToFile(ctx context.Context, url, destPath string) (int64, error)
}

// Extractor unpacks and probes release archives.
type Extractor interface {
	Extract(format release.Format, archivePath, destDir string) error
	Probe(format release.Format, archivePath string) error
}

// Config holds configuration for the Manager.
type Config struct {
	SourcePath  string
	BuildPath   string
	InstallPath string // only needed by Install

	Coordinate release.Coordinate
	Platform   *platform.Info
	Definition *pkgdef.Definition

	// URLTemplate replaces the descriptor's download URL template when set.
	URLTemplate string

	Downloader Downloader
	Extractor  Extractor
	Verifier   *verify.Verifier
	Logger     logging.Logger
	Clock      service.Clock
}

// Manager orchestrates download, verification, extraction and install.
type Manager struct {
	cfg        Config
	templates  release.Templates
	downloader Downloader
	extractor  Extractor
	verifier   *verify.Verifier
	logger     logging.Logger
	clock      service.Clock

	built *BuildResult
}

// New creates a Manager. Unset collaborators get their defaults.
func New(cfg Config) (*Manager, error) {
	if cfg.BuildPath == "" {
		return nil, fmt.Errorf("BuildPath is required")
	}
	if cfg.Platform == nil {
		return nil, fmt.Errorf("Platform is required")
	}
	if cfg.Definition == nil {
		return nil, fmt.Errorf("Definition is required")
	}

	logger := logging.OrNop(cfg.Logger)

	m := &Manager{
		cfg:        cfg,
		templates:  cfg.Definition.Templates(),
		downloader: cfg.Downloader,
		extractor:  cfg.Extractor,
		verifier:   cfg.Verifier,
		logger:     logger,
		clock:      service.OrSystem(cfg.Clock),
	}
	if cfg.URLTemplate != "" {
		m.templates.URL = cfg.URLTemplate
	}
	if m.downloader == nil {
		m.downloader = fetch.NewDownloader(fetch.WithLogger(logger))
	}
	if m.extractor == nil {
		m.extractor = archive.NewExtractor()
	}
	if m.verifier == nil {
		m.verifier = verify.NewVerifier(logger)
	}

	if v := cfg.Definition.Version; v != "" && v != cfg.Coordinate.String() {
		logger.Warn("release version differs from descriptor version",
			"release", cfg.Coordinate.String(), "descriptor", v)
	}

	return m, nil
}

// Artifact resolves the archive for the configured coordinate and
// platform. See Resolve.
func (m *Manager) Artifact() (release.Artifact, error) {
	return resolve(m.cfg.Definition, m.templates, m.cfg.Coordinate, m.cfg.Platform.Descriptor())
}

// Resolve computes the archive a descriptor publishes for a coordinate and
// platform. It fails with *UnsupportedPlatformError when the descriptor
// declares no archive for the platform's OS, and performs no I/O. A
// non-empty urlTemplate replaces the descriptor's.
func Resolve(def *pkgdef.Definition, urlTemplate string, c release.Coordinate, p platform.Descriptor) (release.Artifact, error) {
	tmpl := def.Templates()
	if urlTemplate != "" {
		tmpl.URL = urlTemplate
	}
	return resolve(def, tmpl, c, p)
}

func resolve(def *pkgdef.Definition, tmpl release.Templates, c release.Coordinate, p platform.Descriptor) (release.Artifact, error) {
	format, ok := def.FormatFor(p.OS)
	if !ok {
		return release.Artifact{}, &UnsupportedPlatformError{
			OS:        p.OS,
			Supported: def.SupportedOS(),
		}
	}
	return release.NewArtifact(tmpl, c, p, format)
}

// Run builds, then installs when targets contain "install". Other targets
// are ignored.
func (m *Manager) Run(ctx context.Context, targets []string) error {
	install := false
	for _, t := range targets {
		if t == TargetInstall {
			install = true
			continue
		}
		m.logger.Debug("ignoring build target", "target", t)
	}

	if _, err := m.Build(ctx); err != nil {
		return err
	}
	if !install {
		return nil
	}
	_, err := m.Install(ctx)
	return err
}

func (m *Manager) archivePath(a release.Artifact) string {
	return filepath.Join(m.cfg.BuildPath, a.FileName)
}

func (m *Manager) extractedPath(a release.Artifact) string {
	return filepath.Join(m.cfg.BuildPath, a.ExtractedDir())
}
