package cli

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rezpkg/oidnpkg/internal/config"
	"github.com/rezpkg/oidnpkg/internal/drift"
	"github.com/rezpkg/oidnpkg/internal/transaction"
)

// ErrDriftDetected is returned by the status command when the install
// does not match the requested release.
var ErrDriftDetected = errors.New("install drift detected")

func (a *app) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the installed package against its receipt",
		Long: `Compare REZ_BUILD_INSTALL_PATH with the receipt written by the last install
and with the release the current environment selects. Exits non-zero when
anything drifted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			if settings.InstallPath == "" {
				return fmt.Errorf("%s is not set", config.EnvInstallPath)
			}
			coord, err := settings.Coordinate()
			if err != nil {
				return err
			}
			info, def, err := a.loadDescriptor(cmd.Context(), settings, a.logger(settings))
			if err != nil {
				return err
			}

			receipt, err := transaction.LoadReceipt(settings.InstallPath)
			if errors.Is(err, transaction.ErrNoReceipt) {
				receipt = nil
			} else if err != nil {
				return err
			}

			var exes []string
			for _, file := range def.Aliases(info.OS) {
				exes = append(exes, path.Join(def.Env.Bin, file))
			}
			sort.Strings(exes)

			results, err := drift.DetectDrift(drift.Expected{
				Version:     coord.String(),
				Platform:    info.Descriptor().String(),
				Executables: exes,
			}, receipt, filepath.Join(settings.InstallPath, def.Env.Dir))
			if err != nil {
				return err
			}

			fmt.Fprint(a.stdout, drift.FormatDriftReport(results))
			if drift.HasDrift(results) {
				return ErrDriftDetected
			}
			return nil
		},
	}
}
