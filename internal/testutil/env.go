// Package testutil provides helpers for testing oidnpkg in isolation.
package testutil

import (
	"archive/tar"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Env holds the directories of an isolated rez build environment.
type Env struct {
	SourcePath  string
	BuildPath   string
	InstallPath string
}

// SetupRezEnv creates isolated source, build and install directories and
// points the REZ_BUILD_* variables at them. Directories are removed by
// t.TempDir; variables are restored by t.Setenv.
func SetupRezEnv(t *testing.T, version string) Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := Env{
		SourcePath:  filepath.Join(tmpDir, "source"),
		BuildPath:   filepath.Join(tmpDir, "build"),
		InstallPath: filepath.Join(tmpDir, "install"),
	}

	for _, dir := range []string{env.SourcePath, env.BuildPath, env.InstallPath} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	t.Setenv("REZ_BUILD_PROJECT_VERSION", version)
	t.Setenv("REZ_BUILD_SOURCE_PATH", env.SourcePath)
	t.Setenv("REZ_BUILD_PATH", env.BuildPath)
	t.Setenv("REZ_BUILD_INSTALL_PATH", env.InstallPath)

	// Keep developer settings out of tests.
	for _, name := range []string{
		"OIDNPKG_USER_AGENT", "OIDNPKG_RETRIES", "OIDNPKG_TIMEOUT",
		"OIDNPKG_LOG_LEVEL", "OIDNPKG_LOG_JSON", "OIDNPKG_URL_TEMPLATE",
	} {
		t.Setenv(name, "")
	}

	return env
}

// WriteZip writes a zip archive at path containing files (name -> content).
// Names ending in "/" become directory entries.
func WriteZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create archive dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, name := range sortedKeys(files) {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(files[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

// ZipBytes returns the bytes of a zip archive containing files.
func ZipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.zip")
	WriteZip(t, path, files)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	return data
}

// WriteTarGz writes a gzip-compressed tarball at path containing files.
func WriteTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create archive dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	for _, name := range sortedKeys(files) {
		content := files[name]
		hdr := &tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write tar entry %s: %v", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
}

// OIDNWindowsFiles returns a minimal layout of an OIDN Windows release
// archive for the given extracted directory name.
func OIDNWindowsFiles(dir string) map[string]string {
	return map[string]string{
		dir + "/bin/oidnDenoise.exe":             "MZ denoise",
		dir + "/bin/oidnBenchmark.exe":           "MZ benchmark",
		dir + "/bin/oidnTest.exe":                "MZ test",
		dir + "/bin/OpenImageDenoise.dll":        "MZ dll",
		dir + "/include/OpenImageDenoise/oidn.h": "#pragma once",
		dir + "/lib/OpenImageDenoise.lib":        "lib",
		dir + "/LICENSE.txt":                     "Apache-2.0",
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
