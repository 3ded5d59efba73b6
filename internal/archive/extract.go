// Package archive unpacks release archives into a build directory.
//
// Every entry is checked against path traversal before anything is written.
// Probe opens an archive and walks its index without extracting, which is
// how a cached download is told apart from a truncated one.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/rezpkg/oidnpkg/internal/release"
)

// ErrIllegalPath is returned for entries that would escape the destination.
var ErrIllegalPath = errors.New("illegal file path in archive")

// Extractor handles archive extraction.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks archivePath into destDir using the given format.
func (e *Extractor) Extract(format release.Format, archivePath, destDir string) error {
	switch format {
	case release.FormatZip:
		return e.ExtractZip(archivePath, destDir)
	case release.FormatTarGz:
		return e.ExtractTarGz(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

// Probe reports whether archivePath is a readable archive of the given
// format. For zip it reads the central directory; for tar.gz it streams the
// whole archive so a truncated tail is caught.
func (e *Extractor) Probe(format release.Format, archivePath string) error {
	switch format {
	case release.FormatZip:
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			return fmt.Errorf("open zip: %w", err)
		}
		defer r.Close()
		if len(r.File) == 0 {
			return fmt.Errorf("zip archive %s is empty", filepath.Base(archivePath))
		}
		return nil

	case release.FormatTarGz:
		f, err := os.Open(archivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer f.Close()

		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()

		tr := tar.NewReader(gz)
		for {
			if _, err := tr.Next(); err == io.EOF {
				break
			} else if err != nil {
				return fmt.Errorf("read tar header: %w", err)
			}
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return fmt.Errorf("read tar entry: %w", err)
			}
		}

		// The tar end marker can be decoded before a missing gzip trailer is
		// noticed; drain the stream so the checksum is verified.
		if _, err := io.Copy(io.Discard, gz); err != nil {
			return fmt.Errorf("read gzip stream: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

// ExtractZip extracts a .zip archive to a destination directory.
func (e *Extractor) ExtractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}

		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// Windows-built zips carry no unix permission bits; keep files readable.
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	return out.Close()
}

// ExtractTarGz extracts a .tar.gz archive to a destination directory.
func (e *Extractor) ExtractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	guard, err := newLinkGuard(destDir)
	if err != nil {
		return err
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		name := path.Clean(filepath.ToSlash(header.Name))
		if guard.crossesLink(name) {
			return fmt.Errorf("%w: %s passes through a symlink", ErrIllegalPath, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := guard.parentInside(target); err != nil {
				return err
			}
			if err := writeTarEntry(tarReader, target, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			// Release tarballs link versioned shared libraries
			// (libOpenImageDenoise.so -> libOpenImageDenoise.so.2). Links
			// must stay inside the destination.
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("%w: absolute symlink %s -> %s", ErrIllegalPath, header.Name, header.Linkname)
			}
			if err := guard.checkLinkTarget(name, header.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := guard.parentInside(target); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
			guard.links[name] = true

		default:
			continue
		}
	}

	return nil
}

func writeTarEntry(r io.Reader, target string, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

// linkGuard tracks the symlinks a tar archive has created so later entries
// cannot be written through them.
type linkGuard struct {
	root  string          // destination with symlinks resolved
	links map[string]bool // slash-separated names relative to the destination
}

func newLinkGuard(destDir string) (*linkGuard, error) {
	root, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return nil, fmt.Errorf("resolve dest dir: %w", err)
	}
	return &linkGuard{root: root, links: make(map[string]bool)}, nil
}

// crossesLink reports whether any parent of name is a symlink from this archive.
func (g *linkGuard) crossesLink(name string) bool {
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if g.links[dir] {
			return true
		}
	}
	return false
}

// checkLinkTarget walks linkname from the directory holding name. The walk
// must stay inside the destination and may only end on, never pass
// through, a symlink created earlier.
func (g *linkGuard) checkLinkTarget(name, linkname string) error {
	cur := path.Dir(name)
	parts := strings.Split(filepath.ToSlash(linkname), "/")
	for i, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if cur == "." {
				return fmt.Errorf("%w: symlink %s -> %s escapes destination", ErrIllegalPath, name, linkname)
			}
			cur = path.Dir(cur)
		default:
			cur = path.Join(cur, part)
			if g.links[cur] && i < len(parts)-1 {
				return fmt.Errorf("%w: symlink %s -> %s passes through a symlink", ErrIllegalPath, name, linkname)
			}
		}
	}
	return nil
}

// parentInside resolves the parent of target on disk and rejects it when it
// lies outside the destination.
func (g *linkGuard) parentInside(target string) error {
	parent, err := filepath.EvalSymlinks(filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("resolve parent of %s: %w", target, err)
	}
	if parent != g.root && !strings.HasPrefix(parent, g.root+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %s resolves outside destination", ErrIllegalPath, target)
	}
	return nil
}

// safeJoin joins name onto destDir and rejects results outside destDir.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	return target, nil
}
