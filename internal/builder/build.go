package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rezpkg/oidnpkg/internal/fetch"
	"github.com/rezpkg/oidnpkg/internal/pkgdef"
	"github.com/rezpkg/oidnpkg/internal/release"
	"github.com/rezpkg/oidnpkg/internal/transaction"
	"github.com/rezpkg/oidnpkg/internal/verify"
)

// BuildResult describes the state of the build directory after Build.
type BuildResult struct {
	Artifact      release.Artifact
	ArchivePath   string
	ExtractedPath string
	Downloaded    bool // false when a valid archive was already present
	ArchiveSHA256 string
	Verified      []verify.Method
}

// Build makes sure the release archive is in the build directory and
// unpacks it there. An existing archive that probes as readable is reused
// without touching the network; a corrupt one is fetched again.
func (m *Manager) Build(ctx context.Context) (*BuildResult, error) {
	art, err := m.Artifact()
	if err != nil {
		return nil, err
	}

	lock, err := transaction.AcquireLock(ctx, m.cfg.BuildPath)
	if err != nil {
		return nil, fmt.Errorf("lock build directory: %w", err)
	}
	defer lock.Release()

	result := &BuildResult{
		Artifact:      art,
		ArchivePath:   m.archivePath(art),
		ExtractedPath: m.extractedPath(art),
	}

	if !m.cachedArchiveUsable(art, result.ArchivePath) {
		m.logger.Info("downloading release archive", "url", art.URL, "dest", result.ArchivePath)
		n, err := m.downloader.DownloadToFile(ctx, art.URL, result.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", art.FileName, err)
		}
		result.Downloaded = true
		m.logger.Info("downloaded release archive", "file", art.FileName, "bytes", n)
	}

	if result.ArchiveSHA256, err = verify.SHA256File(result.ArchivePath); err != nil {
		return nil, err
	}

	if result.Verified, err = m.verifyArchive(ctx, art, result.ArchivePath, result.ArchiveSHA256); err != nil {
		return nil, fmt.Errorf("verify %s: %w", art.FileName, err)
	}

	if err := os.RemoveAll(result.ExtractedPath); err != nil {
		return nil, fmt.Errorf("remove stale extraction: %w", err)
	}
	if err := m.extractor.Extract(art.Format, result.ArchivePath, m.cfg.BuildPath); err != nil {
		return nil, fmt.Errorf("extract %s: %w", art.FileName, err)
	}
	if info, err := os.Stat(result.ExtractedPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractedDir, result.ExtractedPath)
	}

	m.logger.Info("extracted release archive", "dir", result.ExtractedPath)
	m.built = result
	return result, nil
}

// cachedArchiveUsable reports whether path holds a readable archive. An
// unreadable one is removed.
func (m *Manager) cachedArchiveUsable(art release.Artifact, path string) bool {
	if !fetch.IsCached(path) {
		return false
	}
	if err := m.extractor.Probe(art.Format, path); err != nil {
		m.logger.Warn("cached archive is unreadable, fetching again", "path", path, "error", err)
		if rmErr := os.Remove(path); rmErr != nil {
			m.logger.Warn("could not remove unreadable archive", "path", path, "error", rmErr)
		}
		return false
	}
	m.logger.Info("archive already present, skipping download", "path", path)
	return true
}

// verifyArchive runs every check the descriptor declares and returns the
// methods that passed.
func (m *Manager) verifyArchive(ctx context.Context, art release.Artifact, path, digest string) ([]verify.Method, error) {
	v := m.cfg.Definition.Verify
	if v == nil {
		m.logger.Debug("no verification declared", "file", art.FileName)
		return nil, nil
	}

	var passed []verify.Method

	if expected, ok := v.SHA256[art.FileName]; ok {
		if err := m.verifier.VerifySHA256(path, expected); err != nil {
			return nil, err
		}
		passed = append(passed, verify.MethodSHA256)
	} else if len(v.SHA256) > 0 {
		m.logger.Warn("no checksum declared for archive", "file", art.FileName, "sha256", digest)
	}

	if v.PGP != nil {
		sigPath, err := m.fetchSignature(ctx, pkgdef.SignatureURL(v.PGP.Signature, art.URL), path+".sig")
		if err != nil {
			return nil, err
		}
		if m.cfg.SourcePath == "" {
			return nil, fmt.Errorf("pgp keyring %q needs a source path", v.PGP.Keyring)
		}
		// #nosec G304 -- keyring path is validated to stay inside the source directory
		keyring, err := os.ReadFile(filepath.Join(m.cfg.SourcePath, v.PGP.Keyring))
		if err != nil {
			return nil, fmt.Errorf("read pgp keyring: %w", err)
		}
		if err := m.verifier.VerifyPGP(path, sigPath, keyring); err != nil {
			return nil, err
		}
		passed = append(passed, verify.MethodPGP)
	}

	if v.Minisign != nil {
		sigPath, err := m.fetchSignature(ctx, pkgdef.SignatureURL(v.Minisign.Signature, art.URL), path+".minisig")
		if err != nil {
			return nil, err
		}
		if err := m.verifier.VerifyMinisign(path, sigPath, v.Minisign.PublicKey); err != nil {
			return nil, err
		}
		passed = append(passed, verify.MethodMinisign)
	}

	return passed, nil
}

// fetchSignature downloads a signature unless it is already present.
func (m *Manager) fetchSignature(ctx context.Context, url, dest string) (string, error) {
	if fetch.IsCached(dest) {
		return dest, nil
	}
	if _, err := m.downloader.DownloadToFile(ctx, url, dest); err != nil {
		return "", fmt.Errorf("download signature: %w", err)
	}
	return dest, nil
}
