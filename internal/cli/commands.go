package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/rezpkg/oidnpkg/internal/builder"
	"github.com/rezpkg/oidnpkg/internal/config"
	"github.com/rezpkg/oidnpkg/internal/fetch"
	"github.com/rezpkg/oidnpkg/internal/pkgdef"
	"github.com/rezpkg/oidnpkg/internal/shell"
)

func newDownloader(s *config.Settings, logger hclog.Logger) *fetch.Downloader {
	return fetch.NewDownloader(
		fetch.WithUserAgent(s.UserAgent),
		fetch.WithRetries(s.Retries),
		fetch.WithTimeout(s.Timeout),
		fetch.WithLogger(logger),
	)
}

func (a *app) newActivateCommand() *cobra.Command {
	var printCommand bool

	cmd := &cobra.Command{
		Use:   "activate [shell] [root]",
		Short: "Print a script exposing the installed package to a shell",
		Long: `Print a script that appends the package root to OIDN_ROOT, its bin
directory to PATH, and defines aliases for the bundled executables.

The shell is detected when omitted. root defaults to REZ_BUILD_INSTALL_PATH.
Supported shells: bash, zsh, fish, powershell.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings, err := config.Load()
			if err != nil {
				return err
			}
			logger := a.logger(settings)

			var sh shell.ShellType
			if len(args) > 0 {
				if sh, err = shell.ParseShellType(args[0]); err != nil {
					return err
				}
			} else {
				detected := shell.DetectShell(ctx)
				if !detected.Shell.IsValid() {
					return fmt.Errorf("could not detect the shell; pass one of: %s", supportedShells())
				}
				logger.Debug("detected shell", "shell", detected.Shell, "method", detected.Method)
				sh = detected.Shell
			}

			root := settings.InstallPath
			if len(args) > 1 {
				root = args[1]
			}
			if root == "" {
				return fmt.Errorf("no install root given and %s is not set", config.EnvInstallPath)
			}

			if printCommand {
				line, err := shell.ActivationCommand(sh, root)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, line)
				return nil
			}

			info, def, err := a.loadDescriptor(ctx, settings, logger)
			if err != nil {
				return err
			}
			script, err := shell.Render(sh, shell.NewEnvironment(def, root, info.OS))
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, script)
			return nil
		},
	}

	cmd.Flags().BoolVar(&printCommand, "print-command", false, "print the line to add to a shell profile instead of the script")
	return cmd
}

func supportedShells() string {
	names := make([]string, 0, 4)
	for _, s := range shell.GetSupportedShells() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

func (a *app) newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show the release archive selected for this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			coord, err := settings.Coordinate()
			if err != nil {
				return err
			}
			info, def, err := a.loadDescriptor(cmd.Context(), settings, a.logger(settings))
			if err != nil {
				return err
			}

			desc := info.Descriptor()
			fmt.Fprintf(a.stdout, "platform:  %s\n", desc)
			fmt.Fprintf(a.stdout, "version:   %s\n", coord)

			art, err := builder.Resolve(def, settings.URLTemplate, coord, desc)
			var unsupported *builder.UnsupportedPlatformError
			if errors.As(err, &unsupported) {
				fmt.Fprintf(a.stdout, "supported: no (archives published for: %s)\n", strings.Join(unsupported.Supported, ", "))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "filename:  %s\n", art.FileName)
			fmt.Fprintf(a.stdout, "url:       %s\n", art.URL)
			fmt.Fprintf(a.stdout, "supported: yes\n")
			return nil
		},
	}
}

func (a *app) newDescriptorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "descriptor",
		Short: "Print the effective package descriptor",
		Long: `Print the package descriptor in use, read from REZ_BUILD_SOURCE_PATH/package.lua
when present and from the embedded default otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			_, def, err := a.loadDescriptor(cmd.Context(), settings, a.logger(settings))
			if err != nil {
				return err
			}
			out, err := pkgdef.NewGenerator().Generate(def)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, out)
			return nil
		},
	}
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the oidnpkg version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "oidnpkg %s\n", Version)
		},
	}
}
