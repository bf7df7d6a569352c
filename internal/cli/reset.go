package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resetFingerprintCmd)
}

var resetFingerprintCmd = &cobra.Command{
	Use:   "reset-fingerprint",
	Short: "Unpin the currently matched persona",
	Long:  `Clears any fingerprint-pinned persona, letting the registry resume weighted random assignment on the next session.`,
	RunE:  runResetFingerprint,
}

func runResetFingerprint(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	if err := client.do(context.Background(), "DELETE", "/fingerprint", nil, nil); err != nil {
		return err
	}

	fmt.Println("Fingerprint pin cleared.")
	return nil
}
