package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rezpkg/oidnpkg/internal/fetch"
	"github.com/rezpkg/oidnpkg/internal/release"
	"github.com/rezpkg/oidnpkg/internal/testutil"
)

func TestLoad_Defaults(t *testing.T) {
	env := testutil.SetupRezEnv(t, "")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Settings{
		SourcePath:  env.SourcePath,
		BuildPath:   env.BuildPath,
		InstallPath: env.InstallPath,
		UserAgent:   fetch.DefaultUserAgent,
		Retries:     fetch.DefaultRetries,
		Timeout:     fetch.DefaultTimeout,
		LogLevel:    "info",
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	c, err := s.Coordinate()
	if err != nil {
		t.Fatalf("Coordinate() error = %v", err)
	}
	if c != (release.Coordinate{}) {
		t.Errorf("Coordinate() = %v, want 0.0.0", c)
	}
}

func TestLoad_Overrides(t *testing.T) {
	testutil.SetupRezEnv(t, "2.3.1")
	t.Setenv(EnvUserAgent, "oidnpkg-test")
	t.Setenv(EnvRetries, "5")
	t.Setenv(EnvTimeout, "90s")
	t.Setenv(EnvLogLevel, " DEBUG ")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvURLTemplate, "http://mirror.local/{filename}")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.ProjectVersion != "2.3.1" {
		t.Errorf("ProjectVersion = %q", s.ProjectVersion)
	}
	if s.UserAgent != "oidnpkg-test" {
		t.Errorf("UserAgent = %q", s.UserAgent)
	}
	if s.Retries != 5 {
		t.Errorf("Retries = %d", s.Retries)
	}
	if s.Timeout != 90*time.Second {
		t.Errorf("Timeout = %s", s.Timeout)
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", s.LogLevel)
	}
	if !s.LogJSON {
		t.Error("LogJSON = false")
	}
	if s.URLTemplate != "http://mirror.local/{filename}" {
		t.Errorf("URLTemplate = %q", s.URLTemplate)
	}
	if err := s.Validate(true); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"bad_retries", EnvRetries, "many"},
		{"bad_timeout", EnvTimeout, "soon"},
		{"bad_log_json", EnvLogJSON, "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.SetupRezEnv(t, "2.3.1")
			t.Setenv(tt.env, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.env) {
				t.Errorf("error %q does not name %s", err, tt.env)
			}
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			ProjectVersion: "2.3.1",
			BuildPath:      "/tmp/build",
			InstallPath:    "/tmp/install",
			Retries:        3,
			Timeout:        time.Minute,
			LogLevel:       "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		install bool
		wantErr []string
	}{
		{name: "valid_build_only", mutate: func(*Settings) {}},
		{name: "valid_install", mutate: func(*Settings) {}, install: true},
		{
			name:   "install_path_optional_without_install",
			mutate: func(s *Settings) { s.InstallPath = "" },
		},
		{
			name:    "install_path_required_for_install",
			mutate:  func(s *Settings) { s.InstallPath = "" },
			install: true,
			wantErr: []string{EnvInstallPath},
		},
		{
			name:    "missing_build_path",
			mutate:  func(s *Settings) { s.BuildPath = "" },
			wantErr: []string{EnvBuildPath},
		},
		{
			name:    "prerelease_version",
			mutate:  func(s *Settings) { s.ProjectVersion = "2.3.1-rc1" },
			wantErr: []string{release.EnvProjectVersion},
		},
		{
			name:    "too_many_retries",
			mutate:  func(s *Settings) { s.Retries = MaxRetries + 1 },
			wantErr: []string{EnvRetries},
		},
		{
			name:    "zero_timeout",
			mutate:  func(s *Settings) { s.Timeout = 0 },
			wantErr: []string{EnvTimeout},
		},
		{
			name:    "unknown_log_level",
			mutate:  func(s *Settings) { s.LogLevel = "chatty" },
			wantErr: []string{EnvLogLevel},
		},
		{
			name:    "url_template_without_filename",
			mutate:  func(s *Settings) { s.URLTemplate = "http://mirror.local/oidn.zip" },
			wantErr: []string{EnvURLTemplate},
		},
		{
			name: "reports_all_problems",
			mutate: func(s *Settings) {
				s.ProjectVersion = "nope"
				s.BuildPath = ""
				s.InstallPath = ""
			},
			install: true,
			wantErr: []string{release.EnvProjectVersion, EnvBuildPath, EnvInstallPath},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)

			err := s.Validate(tt.install)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %s", err, want)
				}
			}
		})
	}
}
