// Package cli implements the oidnpkg command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/rezpkg/oidnpkg/internal/builder"
	"github.com/rezpkg/oidnpkg/internal/config"
	"github.com/rezpkg/oidnpkg/internal/logging"
	"github.com/rezpkg/oidnpkg/internal/pkgdef"
	"github.com/rezpkg/oidnpkg/internal/platform"
	"github.com/rezpkg/oidnpkg/internal/service"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Dependencies are the collaborators commands use. Nil fields get the
// production implementations.
type Dependencies struct {
	Detector   platform.Detector
	Downloader builder.Downloader
	Clock      service.Clock
}

type app struct {
	deps   Dependencies
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand(deps Dependencies, stdout, stderr io.Writer) *cobra.Command {
	if deps.Detector == nil {
		deps.Detector = platform.NewDetector()
	}
	a := &app{deps: deps, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "oidnpkg [targets...]",
		Short: "Fetch and install Intel Open Image Denoise binaries for rez",
		Long: `oidnpkg is the rez build command for the pre-built Intel Open Image Denoise
package. It downloads the release archive for REZ_BUILD_PROJECT_VERSION and
the host platform into REZ_BUILD_PATH and unpacks it there. When "install"
is among the targets, the unpacked tree replaces REZ_BUILD_INSTALL_PATH/oidn.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runBuild,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nGo version: %s\nPlatform: %s/%s\n",
		goVersion(), runtime.GOOS, runtime.GOARCH))
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(a.newActivateCommand())
	rootCmd.AddCommand(a.newResolveCommand())
	rootCmd.AddCommand(a.newDescriptorCommand())
	rootCmd.AddCommand(a.newStatusCommand())
	rootCmd.AddCommand(a.newVersionCommand())

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	return ExecuteWith(Dependencies{}, args, stdout, stderr)
}

// ExecuteWith is Execute with explicit dependencies.
func ExecuteWith(deps Dependencies, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCommand(deps, stdout, stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runBuild(cmd *cobra.Command, targets []string) error {
	ctx := cmd.Context()

	settings, err := config.Load()
	if err != nil {
		return err
	}
	installRequested := false
	for _, t := range targets {
		if t == builder.TargetInstall {
			installRequested = true
		}
	}
	if err := settings.Validate(installRequested); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger := a.logger(settings)
	coord, err := settings.Coordinate()
	if err != nil {
		return err
	}

	info, def, err := a.loadDescriptor(ctx, settings, logger)
	if err != nil {
		return err
	}

	downloader := a.deps.Downloader
	if downloader == nil {
		downloader = newDownloader(settings, logger)
	}

	m, err := builder.New(builder.Config{
		SourcePath:  settings.SourcePath,
		BuildPath:   settings.BuildPath,
		InstallPath: settings.InstallPath,
		Coordinate:  coord,
		Platform:    info,
		Definition:  def,
		URLTemplate: settings.URLTemplate,
		Downloader:  downloader,
		Logger:      logger,
		Clock:       a.deps.Clock,
	})
	if err != nil {
		return err
	}

	logger.Debug("starting build", "version", coord.String(), "platform", info.Descriptor().String(), "targets", targets)
	return m.Run(ctx, targets)
}

func (a *app) logger(s *config.Settings) hclog.Logger {
	return logging.New(logging.Options{
		Name:   "oidnpkg",
		Level:  s.LogLevel,
		JSON:   s.LogJSON,
		Output: a.stderr,
	})
}

// loadDescriptor detects the host and loads the package descriptor from
// the source directory or the embedded default.
func (a *app) loadDescriptor(ctx context.Context, s *config.Settings, logger hclog.Logger) (*platform.Info, *pkgdef.Definition, error) {
	info, err := a.deps.Detector.Detect(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("detected platform", "os", info.OS, "arch", info.Arch, "os_raw", info.OSRaw, "arch_raw", info.ArchRaw)

	// The descriptor sees the host detected above.
	def, source, err := pkgdef.NewParser(platform.StaticDetector{Info: *info}).Load(ctx, s.SourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load package descriptor: %s", pkgdef.FormatError(err, logger.IsDebug()))
	}
	logger.Debug("loaded package descriptor", "source", source, "name", def.Name)

	return info, def, nil
}

func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}
