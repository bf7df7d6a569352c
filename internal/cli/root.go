// Package cli implements the Poisson command-line interface using Cobra.
// Each subcommand either drives the daemon directly (serve) or talks to
// its control-plane API as a client (status, engines, watch).
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/poisson-noise/poisson/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "poisson",
	Short: "Poisson — decoy network traffic for Home Assistant",
	Long: `Poisson generates plausible-looking decoy web traffic — searches,
page browsing, DNS lookups, and optionally Tor circuits — on a
diurnal schedule, so that a household's real browsing habits don't
stand out against a flat, silent baseline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 1
		switch {
		case errors.Is(err, domain.ErrConfigInvalidEnum), errors.Is(err, domain.ErrConfigOutOfRange),
			errors.Is(err, domain.ErrConfigUnreadable):
			code = 2
		case errors.Is(err, domain.ErrDataFileMissing), errors.Is(err, domain.ErrDataFileMalformed),
			errors.Is(err, domain.ErrDataCategoryMissing):
			code = 3
		}
		os.Exit(code)
	}
}
