package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/rezpkg/oidnpkg/internal/fetch"
	"github.com/rezpkg/oidnpkg/internal/release"
)

// Setting keys.
const (
	KeyProjectVersion = "project_version"
	KeySourcePath     = "source_path"
	KeyBuildPath      = "build_path"
	KeyInstallPath    = "install_path"
	KeyUserAgent      = "user_agent"
	KeyRetries        = "retries"
	KeyTimeout        = "timeout"
	KeyLogLevel       = "log_level"
	KeyLogJSON        = "log_json"
	KeyURLTemplate    = "url_template"
)

// Environment variable names.
const (
	EnvSourcePath  = "REZ_BUILD_SOURCE_PATH"
	EnvBuildPath   = "REZ_BUILD_PATH"
	EnvInstallPath = "REZ_BUILD_INSTALL_PATH"
	EnvUserAgent   = "OIDNPKG_USER_AGENT"
	EnvRetries     = "OIDNPKG_RETRIES"
	EnvTimeout     = "OIDNPKG_TIMEOUT"
	EnvLogLevel    = "OIDNPKG_LOG_LEVEL"
	EnvLogJSON     = "OIDNPKG_LOG_JSON"
	EnvURLTemplate = "OIDNPKG_URL_TEMPLATE"
)

// MaxRetries bounds OIDNPKG_RETRIES.
const MaxRetries = 10

var bindings = map[string]string{
	KeyProjectVersion: release.EnvProjectVersion,
	KeySourcePath:     EnvSourcePath,
	KeyBuildPath:      EnvBuildPath,
	KeyInstallPath:    EnvInstallPath,
	KeyUserAgent:      EnvUserAgent,
	KeyRetries:        EnvRetries,
	KeyTimeout:        EnvTimeout,
	KeyLogLevel:       EnvLogLevel,
	KeyLogJSON:        EnvLogJSON,
	KeyURLTemplate:    EnvURLTemplate,
}

var logLevels = map[string]bool{
	"": true, "trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "off": true,
}

// Settings is the resolved configuration of one invocation.
type Settings struct {
	ProjectVersion string
	SourcePath     string
	BuildPath      string
	InstallPath    string
	UserAgent      string
	Retries        uint
	Timeout        time.Duration
	LogLevel       string
	LogJSON        bool
	URLTemplate    string
}

// Load reads settings from the process environment.
func Load() (*Settings, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Settings, error) {
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.SetDefault(KeyUserAgent, fetch.DefaultUserAgent)
	v.SetDefault(KeyRetries, fetch.DefaultRetries)
	v.SetDefault(KeyTimeout, fetch.DefaultTimeout)
	v.SetDefault(KeyLogLevel, "info")

	s := &Settings{
		ProjectVersion: strings.TrimSpace(v.GetString(KeyProjectVersion)),
		SourcePath:     v.GetString(KeySourcePath),
		BuildPath:      v.GetString(KeyBuildPath),
		InstallPath:    v.GetString(KeyInstallPath),
		UserAgent:      v.GetString(KeyUserAgent),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		URLTemplate:    v.GetString(KeyURLTemplate),
	}

	var err error
	if s.Retries, err = cast.ToUintE(v.Get(KeyRetries)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvRetries, err)
	}
	if s.Timeout, err = cast.ToDurationE(v.Get(KeyTimeout)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvTimeout, err)
	}
	if s.LogJSON, err = cast.ToBoolE(v.Get(KeyLogJSON)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvLogJSON, err)
	}

	return s, nil
}

// Coordinate parses the project version.
func (s *Settings) Coordinate() (release.Coordinate, error) {
	return release.ParseCoordinate(s.ProjectVersion)
}

// Validate reports every configuration problem at once. The install path
// is only required when the install target was requested.
func (s *Settings) Validate(installRequested bool) error {
	var errs []error

	if _, err := s.Coordinate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", release.EnvProjectVersion, err))
	}
	if s.BuildPath == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvBuildPath))
	}
	if installRequested && s.InstallPath == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvInstallPath))
	}
	if s.Retries > MaxRetries {
		errs = append(errs, fmt.Errorf("%s: %d exceeds the maximum of %d", EnvRetries, s.Retries, MaxRetries))
	}
	if s.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s: must be positive, got %s", EnvTimeout, s.Timeout))
	}
	if !logLevels[s.LogLevel] {
		errs = append(errs, fmt.Errorf("%s: unknown level %q", EnvLogLevel, s.LogLevel))
	}
	if s.URLTemplate != "" && !strings.Contains(s.URLTemplate, "{filename}") {
		errs = append(errs, fmt.Errorf("%s: template must contain {filename}", EnvURLTemplate))
	}

	return errors.Join(errs...)
}
