package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live-updating terminal dashboard of the running daemon",
	RunE:  runWatch,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

const watchInterval = 2 * time.Second

type tickMsg time.Time

type watchModel struct {
	client *apiClient
	status statusView
	stats  statsView
	err    error
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.client), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type fetchResultMsg struct {
	status statusView
	stats  statsView
	err    error
}

func fetchCmd(client *apiClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var st statusView
		var stats statsView
		if err := client.get(ctx, "/status", &st); err != nil {
			return fetchResultMsg{err: err}
		}
		if err := client.get(ctx, "/stats", &stats); err != nil {
			return fetchResultMsg{err: err}
		}
		return fetchResultMsg{status: st, stats: stats}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(fetchCmd(m.client), tickCmd())
	case fetchResultMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.stats = msg.stats
		}
		return m, nil
	}
	return m, nil
}

func (m watchModel) View() string {
	b := &buffer{}
	b.line(headerStyle.Render("poisson — live status"))
	b.line("")

	if m.err != nil {
		b.line(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.line("")
		b.line(footerStyle.Render("retrying every " + watchInterval.String() + " — press q to quit"))
		return b.String()
	}

	row := func(label, value string) {
		b.line(labelStyle.Render(label) + value)
	}

	row("status", m.status.Status)
	row("current persona", m.status.CurrentPersona)
	row("intensity", m.status.Intensity)
	row("fingerprint matched", fmt.Sprintf("%v", m.status.FingerprintMatched))
	if m.status.TorStatus != "" {
		row("tor status", m.status.TorStatus)
	}
	b.line("")
	row("sessions today", humanize.Comma(m.stats.SessionsToday))
	row("requests today", humanize.Comma(m.stats.RequestsToday))
	row("bandwidth today", humanize.Bytes(uint64(m.stats.BandwidthTodayMB*1024*1024)))
	row("active sessions", fmt.Sprintf("%d", m.stats.ActiveSessions))
	row("errors today", humanize.Comma(m.stats.ErrorsToday))
	if m.stats.NextSessionIn > 0 {
		row("next session in", time.Duration(m.stats.NextSessionIn*float64(time.Second)).Round(time.Second).String())
	}

	b.line("")
	b.line(footerStyle.Render("refreshing every " + watchInterval.String() + " — press q to quit"))
	return b.String()
}

type buffer struct{ s string }

func (b *buffer) line(s string) { b.s += s + "\n" }
func (b *buffer) String() string { return b.s }

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	p := tea.NewProgram(watchModel{client: client})
	_, err = p.Run()
	return err
}
