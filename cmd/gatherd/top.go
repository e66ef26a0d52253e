package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gatherd/internal/monitor"
)

var (
	topServerURL string
	topInterval  time.Duration
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live dashboard for a running daemon",
	Long: `Render a terminal dashboard of gather throughput, cache behavior, and
collector warnings, polling a running daemon's stats API.

Examples:
  # Watch the local daemon
  gatherd top

  # Watch a remote daemon, polling every 5s
  gatherd top --server http://build-host:8091 --interval 5s`,
	RunE: runTop,
}

func init() {
	topCmd.Flags().StringVar(&topServerURL, "server", "http://127.0.0.1:8091", "gatherd server URL")
	topCmd.Flags().DurationVar(&topInterval, "interval", 2*time.Second, "poll interval")
}

func runTop(cmd *cobra.Command, args []string) error {
	model := monitor.NewModel(topServerURL, topInterval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
