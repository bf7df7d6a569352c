package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusView struct {
	Status             string  `json:"status"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	CurrentPersona     string  `json:"current_persona"`
	Intensity          string  `json:"intensity"`
	FingerprintMatched bool    `json:"fingerprint_matched"`
	TorStatus          string  `json:"tor_status"`
}

type statsView struct {
	SessionsToday    int64   `json:"sessions_today"`
	RequestsToday    int64   `json:"requests_today"`
	BandwidthTodayMB float64 `json:"bandwidth_today_mb"`
	ActiveSessions   int     `json:"active_sessions"`
	ErrorsToday      int64   `json:"errors_today"`
	NextSessionIn    float64 `json:"next_session_in"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's current status and today's traffic stats",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx := context.Background()

	var st statusView
	if err := client.get(ctx, "/status", &st); err != nil {
		return err
	}
	var stats statsView
	if err := client.get(ctx, "/stats", &stats); err != nil {
		return err
	}

	fmt.Printf("status:              %s\n", st.Status)
	fmt.Printf("uptime:              %s\n", time.Duration(st.UptimeSeconds*float64(time.Second)).Round(time.Second))
	fmt.Printf("current persona:     %s\n", st.CurrentPersona)
	fmt.Printf("intensity:           %s\n", st.Intensity)
	fmt.Printf("fingerprint matched: %v\n", st.FingerprintMatched)
	if st.TorStatus != "" {
		fmt.Printf("tor status:          %s\n", st.TorStatus)
	}
	fmt.Println()
	fmt.Printf("sessions today:      %d\n", stats.SessionsToday)
	fmt.Printf("requests today:      %d\n", stats.RequestsToday)
	fmt.Printf("bandwidth today:     %.2f MB\n", stats.BandwidthTodayMB)
	fmt.Printf("active sessions:     %d\n", stats.ActiveSessions)
	fmt.Printf("errors today:        %d\n", stats.ErrorsToday)
	if stats.NextSessionIn > 0 {
		fmt.Printf("next session in:     %s\n", time.Duration(stats.NextSessionIn*float64(time.Second)).Round(time.Second))
	}
	return nil
}
