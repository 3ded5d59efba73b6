package builder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rezpkg/oidnpkg/internal/fetch"
	"github.com/rezpkg/oidnpkg/internal/pkgdef"
	"github.com/rezpkg/oidnpkg/internal/platform"
	"github.com/rezpkg/oidnpkg/internal/release"
	"github.com/rezpkg/oidnpkg/internal/service"
	"github.com/rezpkg/oidnpkg/internal/testutil"
	"github.com/rezpkg/oidnpkg/internal/transaction"
	"github.com/rezpkg/oidnpkg/internal/verify"
)

const githubURL = "https://github.com/RenderKit/oidn/releases/download/v2.3.1/oidn-2.3.1.x64.windows.zip"

var windowsX64 = &platform.Info{OS: platform.OSWindows, Arch: platform.ArchX64, OSRaw: "windows", ArchRaw: "AMD64"}

// fakeDownloader writes payload to the destination and records URLs.
type fakeDownloader struct {
	mu      sync.Mutex
	calls   []string
	payload []byte
	err     error
}

func (f *fakeDownloader) DownloadToFile(ctx context.Context, url, destPath string) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(destPath, f.payload, 0644); err != nil {
		return 0, err
	}
	return int64(len(f.payload)), nil
}

func defaultDefinition(t *testing.T) *pkgdef.Definition {
	t.Helper()
	def, _, err := pkgdef.NewParser(nil).Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load default descriptor: %v", err)
	}
	return def
}

func releaseZip(t *testing.T, version string) []byte {
	t.Helper()
	return testutil.ZipBytes(t, testutil.OIDNWindowsFiles("oidn-"+version+".x64.windows"))
}

func newTestManager(t *testing.T, env testutil.Env, cfg Config) *Manager {
	t.Helper()
	if cfg.BuildPath == "" {
		cfg.BuildPath = env.BuildPath
	}
	if cfg.InstallPath == "" {
		cfg.InstallPath = env.InstallPath
	}
	if cfg.SourcePath == "" {
		cfg.SourcePath = env.SourcePath
	}
	if cfg.Platform == nil {
		cfg.Platform = windowsX64
	}
	if cfg.Definition == nil {
		cfg.Definition = defaultDefinition(t)
	}
	if cfg.Coordinate == (release.Coordinate{}) {
		cfg.Coordinate = release.MustParseCoordinate("2.3.1")
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestNew_RequiredFields(t *testing.T) {
	def := defaultDefinition(t)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing_build_path", Config{Platform: windowsX64, Definition: def}},
		{"missing_platform", Config{BuildPath: "/tmp/b", Definition: def}},
		{"missing_definition", Config{BuildPath: "/tmp/b", Platform: windowsX64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestArtifact_DefaultRelease(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	m := newTestManager(t, env, Config{})

	art, err := m.Artifact()
	if err != nil {
		t.Fatalf("Artifact() error = %v", err)
	}
	if art.URL != githubURL {
		t.Errorf("URL = %q, want %q", art.URL, githubURL)
	}
	if art.FileName != "oidn-2.3.1.x64.windows.zip" {
		t.Errorf("FileName = %q", art.FileName)
	}
	if art.ExtractedDir() != "oidn-2.3.1.x64.windows" {
		t.Errorf("ExtractedDir() = %q", art.ExtractedDir())
	}
}

func TestArtifact_UnsupportedPlatform(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")

	for _, info := range []*platform.Info{
		{OS: platform.OSLinux, Arch: platform.ArchX64},
		{OS: platform.OSMacOS, Arch: platform.ArchARM64},
	} {
		m := newTestManager(t, env, Config{Platform: info})

		_, err := m.Artifact()
		var unsupported *UnsupportedPlatformError
		if !errors.As(err, &unsupported) {
			t.Fatalf("%s: error = %v, want *UnsupportedPlatformError", info.OS, err)
		}
		if unsupported.OS != info.OS {
			t.Errorf("OS = %q, want %q", unsupported.OS, info.OS)
		}
		if diff := cmp.Diff([]string{"windows"}, unsupported.Supported); diff != "" {
			t.Errorf("Supported mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestRun_EndToEnd(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	payload := releaseZip(t, "2.3.1")

	var requests atomic.Int32
	var mu sync.Mutex
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mu.Lock()
		gotPath, gotUA = r.URL.Path, r.UserAgent()
		mu.Unlock()
		w.Write(payload)
	}))
	defer srv.Close()

	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, env, Config{
		URLTemplate: srv.URL + "/RenderKit/oidn/releases/download/v{major}.{minor}.{patch}/{filename}",
		Downloader:  fetch.NewDownloader(fetch.WithRetries(0)),
		Clock:       service.FixedClock(now),
	})

	if err := m.Run(context.Background(), []string{"install"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1", requests.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != strings.TrimPrefix(githubURL, "https://github.com") {
		t.Errorf("request path = %q", gotPath)
	}
	if gotUA != fetch.DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, fetch.DefaultUserAgent)
	}

	exe := filepath.Join(env.InstallPath, "oidn", "bin", "oidnDenoise.exe")
	if _, err := os.Stat(exe); err != nil {
		t.Errorf("installed executable missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows.zip")); err != nil {
		t.Errorf("archive not kept in build dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.BuildPath, transaction.LockFileName)); !os.IsNotExist(err) {
		t.Error("build lock not released")
	}

	receipt, err := transaction.LoadReceipt(env.InstallPath)
	if err != nil {
		t.Fatalf("LoadReceipt() error = %v", err)
	}
	if receipt.Package != "IntelOpenImageDenoise" || receipt.PackageVer != "2.3.1" {
		t.Errorf("receipt package = %s %s", receipt.Package, receipt.PackageVer)
	}
	if receipt.Platform != "x64.windows" {
		t.Errorf("receipt platform = %q", receipt.Platform)
	}
	if !receipt.Timestamp.Equal(now) {
		t.Errorf("receipt timestamp = %v, want %v", receipt.Timestamp, now)
	}
	if diff := cmp.Diff([]string{"LICENSE.txt", "bin", "include", "lib"}, receipt.Entries); diff != "" {
		t.Errorf("receipt entries mismatch (-want +got):\n%s", diff)
	}
	sum, err := verify.SHA256File(filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ArchiveSHA != sum {
		t.Errorf("receipt sha = %q, want %q", receipt.ArchiveSHA, sum)
	}
}

func TestBuild_UsesDefaultURL(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	dl := &fakeDownloader{payload: releaseZip(t, "2.3.1")}
	m := newTestManager(t, env, Config{Downloader: dl})

	result, err := m.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if diff := cmp.Diff([]string{githubURL}, dl.calls); diff != "" {
		t.Errorf("download calls mismatch (-want +got):\n%s", diff)
	}
	if !result.Downloaded {
		t.Error("Downloaded = false")
	}
	if result.ExtractedPath != filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows") {
		t.Errorf("ExtractedPath = %q", result.ExtractedPath)
	}
	if len(result.Verified) != 0 {
		t.Errorf("Verified = %v, want none", result.Verified)
	}
}

func TestBuild_SkipsDownloadWhenCached(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	testutil.WriteZip(t, filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows.zip"),
		testutil.OIDNWindowsFiles("oidn-2.3.1.x64.windows"))

	dl := &fakeDownloader{err: errors.New("network must not be used")}
	m := newTestManager(t, env, Config{Downloader: dl})

	result, err := m.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(dl.calls) != 0 {
		t.Errorf("download calls = %v, want none", dl.calls)
	}
	if result.Downloaded {
		t.Error("Downloaded = true for cached archive")
	}
	if _, err := os.Stat(filepath.Join(result.ExtractedPath, "bin", "oidnDenoise.exe")); err != nil {
		t.Errorf("cached archive not extracted: %v", err)
	}
}

func TestBuild_RefetchesCorruptArchive(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	archive := filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows.zip")
	full := releaseZip(t, "2.3.1")
	if err := os.WriteFile(archive, full[:len(full)/2], 0644); err != nil {
		t.Fatal(err)
	}

	dl := &fakeDownloader{payload: full}
	m := newTestManager(t, env, Config{Downloader: dl})

	result, err := m.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(dl.calls) != 1 {
		t.Errorf("download calls = %d, want 1", len(dl.calls))
	}
	if !result.Downloaded {
		t.Error("Downloaded = false after corrupt cache")
	}
}

func TestBuild_UnsupportedPlatformHasNoSideEffects(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	buildPath := filepath.Join(env.BuildPath, "fresh")

	dl := &fakeDownloader{payload: releaseZip(t, "2.3.1")}
	m := newTestManager(t, env, Config{
		BuildPath:  buildPath,
		Platform:   &platform.Info{OS: platform.OSLinux, Arch: platform.ArchX64},
		Downloader: dl,
	})

	_, err := m.Build(context.Background())
	var unsupported *UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want *UnsupportedPlatformError", err)
	}
	if len(dl.calls) != 0 {
		t.Errorf("download calls = %v, want none", dl.calls)
	}
	if _, err := os.Stat(buildPath); !os.IsNotExist(err) {
		t.Error("build directory was created")
	}

	if _, err := m.Install(context.Background()); !errors.As(err, &unsupported) {
		t.Errorf("Install() error = %v, want *UnsupportedPlatformError", err)
	}
}

func TestBuild_ExtractedDirFollowsVersion(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.2.0")
	dl := &fakeDownloader{payload: releaseZip(t, "2.2.0")}
	m := newTestManager(t, env, Config{
		Coordinate: release.MustParseCoordinate("2.2.0"),
		Downloader: dl,
	})

	if err := m.Run(context.Background(), []string{"install"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if dl.calls[0] != "https://github.com/RenderKit/oidn/releases/download/v2.2.0/oidn-2.2.0.x64.windows.zip" {
		t.Errorf("URL = %q", dl.calls[0])
	}
	if _, err := os.Stat(filepath.Join(env.InstallPath, "oidn", "bin", "oidnDenoise.exe")); err != nil {
		t.Errorf("installed executable missing: %v", err)
	}
}

func TestBuild_ArchiveWithoutExpectedDir(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	dl := &fakeDownloader{payload: testutil.ZipBytes(t, map[string]string{"other/bin/x.exe": "x"})}
	m := newTestManager(t, env, Config{Downloader: dl})

	if _, err := m.Build(context.Background()); !errors.Is(err, ErrNoExtractedDir) {
		t.Errorf("error = %v, want ErrNoExtractedDir", err)
	}
}

func TestBuild_RemovesStaleExtraction(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	stale := filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows", "stale.txt")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(t, env, Config{Downloader: &fakeDownloader{payload: releaseZip(t, "2.3.1")}})
	if _, err := m.Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file survived extraction")
	}
}

func TestBuild_DownloadFailure(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	dl := &fakeDownloader{err: &fetch.HTTPStatusError{URL: githubURL, StatusCode: http.StatusNotFound}}
	m := newTestManager(t, env, Config{Downloader: dl})

	_, err := m.Build(context.Background())
	var statusErr *fetch.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("error = %v, want 404 HTTPStatusError", err)
	}
}

func TestBuild_LockHeld(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	lock, err := transaction.AcquireLock(context.Background(), env.BuildPath)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	dl := &fakeDownloader{payload: releaseZip(t, "2.3.1")}
	m := newTestManager(t, env, Config{Downloader: dl})

	if _, err := m.Build(context.Background()); !errors.Is(err, transaction.ErrLockExists) {
		t.Errorf("error = %v, want ErrLockExists", err)
	}
	if len(dl.calls) != 0 {
		t.Errorf("download calls = %v, want none", dl.calls)
	}
}

func withSHA256(t *testing.T, digest string) *pkgdef.Definition {
	t.Helper()
	def := defaultDefinition(t)
	def.Verify = &pkgdef.Verify{SHA256: map[string]string{"oidn-2.3.1.x64.windows.zip": digest}}
	return def
}

func TestBuild_ChecksumMismatch(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	m := newTestManager(t, env, Config{
		Definition: withSHA256(t, strings.Repeat("0", 64)),
		Downloader: &fakeDownloader{payload: releaseZip(t, "2.3.1")},
	})

	if _, err := m.Build(context.Background()); !errors.Is(err, verify.ErrChecksumMismatch) {
		t.Errorf("error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := os.Stat(filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows")); !os.IsNotExist(err) {
		t.Error("archive was extracted despite checksum mismatch")
	}
}

func TestBuild_ChecksumMatch(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	payload := releaseZip(t, "2.3.1")

	probe := filepath.Join(t.TempDir(), "probe.zip")
	if err := os.WriteFile(probe, payload, 0644); err != nil {
		t.Fatal(err)
	}
	digest, err := verify.SHA256File(probe)
	if err != nil {
		t.Fatal(err)
	}

	m := newTestManager(t, env, Config{
		Definition: withSHA256(t, strings.ToUpper(digest)),
		Downloader: &fakeDownloader{payload: payload},
	})

	result, err := m.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if diff := cmp.Diff([]verify.Method{verify.MethodSHA256}, result.Verified); diff != "" {
		t.Errorf("Verified mismatch (-want +got):\n%s", diff)
	}

	inst, err := m.Install(context.Background())
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if inst.Receipt.Verification != "sha256" {
		t.Errorf("receipt verification = %q", inst.Receipt.Verification)
	}
}

func TestRun_BuildOnlyWithoutInstallTarget(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	m := newTestManager(t, env, Config{Downloader: &fakeDownloader{payload: releaseZip(t, "2.3.1")}})

	if err := m.Run(context.Background(), []string{"build", "INSTALL"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.InstallPath, "oidn")); !os.IsNotExist(err) {
		t.Error("install ran without the install target")
	}
	if _, err := os.Stat(filepath.Join(env.BuildPath, "oidn-2.3.1.x64.windows")); err != nil {
		t.Errorf("build did not extract: %v", err)
	}
}

func TestInstall_ReplacesPreviousInstall(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	stale := filepath.Join(env.InstallPath, "oidn", "old", "stale.dll")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(t, env, Config{Downloader: &fakeDownloader{payload: releaseZip(t, "2.3.1")}})
	if _, err := m.Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	result, err := m.Install(context.Background())
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("previous install content survived")
	}
	got, err := os.ReadDir(result.Root)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range got {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"LICENSE.txt", "bin", "include", "lib"}, names); diff != "" {
		t.Errorf("install root mismatch (-want +got):\n%s", diff)
	}
}

func TestInstall_WithoutBuild(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	m := newTestManager(t, env, Config{})

	if _, err := m.Install(context.Background()); !errors.Is(err, ErrNoExtractedDir) {
		t.Errorf("error = %v, want ErrNoExtractedDir", err)
	}
	if _, err := os.Stat(filepath.Join(env.InstallPath, "oidn")); !os.IsNotExist(err) {
		t.Error("install directory touched before the build output was checked")
	}
}

func TestInstall_RequiresInstallPath(t *testing.T) {
	env := testutil.SetupRezEnv(t, "2.3.1")
	m := newTestManager(t, env, Config{})
	m.cfg.InstallPath = ""

	if _, err := m.Install(context.Background()); err == nil {
		t.Error("expected error without install path")
	}
}

func TestResolve(t *testing.T) {
	def := defaultDefinition(t)
	c := release.MustParseCoordinate("2.3.1")

	art, err := Resolve(def, "", c, platform.Descriptor{OS: platform.OSWindows, Arch: platform.ArchX64})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if art.URL != githubURL {
		t.Errorf("URL = %q", art.URL)
	}

	art, err = Resolve(def, "https://mirror.example/{version}/{filename}", c, platform.Descriptor{OS: platform.OSWindows, Arch: platform.ArchARM64})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if art.URL != "https://mirror.example/2.3.1/oidn-2.3.1.arm64.windows.zip" {
		t.Errorf("URL = %q", art.URL)
	}

	_, err = Resolve(def, "", c, platform.Descriptor{OS: platform.OSMacOS, Arch: platform.ArchARM64})
	var unsupported *UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Errorf("error = %v, want *UnsupportedPlatformError", err)
	}
}
