package cmd

import (
	"fmt"
	"os"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// updateRepo is the GitHub repository releases are published to.
const updateRepo = "stackbound/agentrelay"

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selfupdate",
		Short: "Update agentrelay to the latest release",
		Long: `The selfupdate command checks GitHub for a newer release and replaces
the current binary in place when one is available.`,
		RunE: runSelfUpdate,
	}
}

func init() {
	rootCmd.AddCommand(newSelfUpdateCmd())
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	if version == "" || version == "dev" {
		return fmt.Errorf("cannot self-update a development build")
	}

	latest, found, err := selfupdate.DetectLatest(cmd.Context(), selfupdate.ParseSlug(updateRepo))
	if err != nil {
		return fmt.Errorf("detecting latest release: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", updateRepo)
	}

	if latest.LessOrEqual(version) {
		logger.Info("Current version %s is up to date", version)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating current executable: %w", err)
	}

	logger.Info("Updating %s -> %s", version, latest.Version())
	if err := selfupdate.UpdateTo(cmd.Context(), latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("updating binary: %w", err)
	}

	logger.Success("Updated to version %s", latest.Version())
	return nil
}
