package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poisson-noise/poisson/internal/domain"
)

func init() {
	enginesCmd.AddCommand(enginesListCmd)
	enginesCmd.AddCommand(enginesToggleCmd)
	rootCmd.AddCommand(enginesCmd)
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Inspect and control the traffic-generating engines",
}

var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every engine, whether it's enabled, and its live counters",
	RunE:  runEnginesList,
}

var enginesToggleCmd = &cobra.Command{
	Use:   "toggle NAME on|off",
	Short: "Enable or disable one engine",
	Args:  cobra.ExactArgs(2),
	RunE:  runEnginesToggle,
}

func runEnginesList(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		Engines []domain.EngineSpec `json:"engines"`
	}
	if err := client.get(context.Background(), "/engines", &resp); err != nil {
		return err
	}

	fmt.Printf("%-10s %-8s %-8s %10s %10s %10s\n", "NAME", "ENABLED", "WEIGHT", "REQUESTS", "ERRORS", "BYTES")
	for _, e := range resp.Engines {
		fmt.Printf("%-10s %-8v %-8.1f %10d %10d %10d\n",
			e.Name, e.Enabled, e.Weight, e.Stats.Requests, e.Stats.Errors, e.Stats.Bytes)
	}
	return nil
}

func runEnginesToggle(cmd *cobra.Command, args []string) error {
	name, state := args[0], args[1]
	var enabled bool
	switch state {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return fmt.Errorf("state must be on or off, got %q", state)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	body := map[string]bool{"enabled": enabled}
	if err := client.post(context.Background(), "/engines/"+name+"/toggle", body, nil); err != nil {
		return err
	}

	fmt.Printf("%s: enabled=%v\n", name, enabled)
	return nil
}
