package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model is the BubbleTea dashboard model.
type Model struct {
	serverURL  string
	interval   time.Duration
	lastUpdate time.Time
	stats      StatsSnapshot
	prev       StatsSnapshot
	havePrev   bool
	rate       float64
	err        error
	quitting   bool

	// Histories for sparklines, newest last.
	rateHistory    []float64
	hitHistory     []float64
	entriesHistory []float64
	warnHistory    []float64

	hitProgress  progress.Model
	failProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling the given daemon URL.
func NewModel(serverURL string, interval time.Duration) Model {
	hitProg := progress.New(
		progress.WithGradient("#ff0000", "#00ff00"),
		progress.WithWidth(40),
	)

	failProg := progress.New(
		progress.WithGradient("#00ff00", "#ff0000"),
		progress.WithWidth(40),
	)

	return Model{
		serverURL:      serverURL,
		interval:       interval,
		quitting:       false,
		hitProgress:    hitProg,
		failProgress:   failProg,
		rateHistory:    make([]float64, 0, historySize),
		hitHistory:     make([]float64, 0, historySize),
		entriesHistory: make([]float64, 0, historySize),
		warnHistory:    make([]float64, 0, historySize),
	}
}

// getFailureBadge returns a colored status badge based on the fatal-run share.
func getFailureBadge(failureRate float64) string {
	if failureRate < 0.01 {
		return healthyStyle.Render("[✓]")
	} else if failureRate < 0.10 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// getStatusBadge returns the overall daemon status badge.
func getStatusBadge(failureRate float64) string {
	if failureRate < 0.01 {
		return healthyStyle.Render("✓ HEALTHY")
	} else if failureRate < 0.10 {
		return warningStyle.Render("⚠ WARN")
	}
	return errorStyle.Render("✗ ERROR")
}

// getHitBadge returns a badge for the cache hit ratio.
func getHitBadge(hitRate float64) string {
	if hitRate >= 0.5 {
		return healthyStyle.Render("[✓]")
	} else if hitRate >= 0.2 {
		return warningStyle.Render("[⚠]")
	}
	return dimStyle.Render("[·]")
}

// appendToHistory appends a value to history, maintaining max size.
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data.
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type statsMsg StatsSnapshot
type errMsg error

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStats(m.serverURL),
	)
}

// tick creates a tick command for auto-refresh.
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStats polls the daemon stats endpoint.
func fetchStats(serverURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client := NewStatsClient(serverURL)
		snap, err := client.FetchStats(ctx)
		if err != nil {
			return errMsg(err)
		}
		return statsMsg(snap)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStats(m.serverURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStats(m.serverURL),
		)

	case statsMsg:
		snap := StatsSnapshot(msg)

		// Request rate is derived from the counter delta between polls.
		if m.havePrev && m.interval > 0 {
			delta := float64(snap.Gather.Requests - m.prev.Gather.Requests)
			if delta < 0 {
				delta = 0 // daemon restarted, counters reset
			}
			m.rate = delta / m.interval.Minutes()
		}
		warnDelta := float64(snap.Gather.CollectorWarnings - m.prev.Gather.CollectorWarnings)
		if !m.havePrev || warnDelta < 0 {
			warnDelta = 0
		}

		m.rateHistory = appendToHistory(m.rateHistory, m.rate)
		m.hitHistory = appendToHistory(m.hitHistory, snap.HitRate()*100)
		m.entriesHistory = appendToHistory(m.entriesHistory, float64(snap.Cache.Entries))
		m.warnHistory = appendToHistory(m.warnHistory, warnDelta)

		m.prev = snap
		m.havePrev = true
		m.stats = snap
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the connection failure view.
func (m Model) renderError() string {
	header := headerStyle.Render(" gatherd Monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot connect to gatherd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Please ensure:") + "\n"
	content += dimStyle.Render("  1. gatherd serve is running") + "\n"
	content += dimStyle.Render("  2. the HTTP API is listening on the URL above") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

// renderDashboard renders the main view with sparklines and progress bars.
func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	failureRate := m.stats.FailureRate()
	hitRate := m.stats.HitRate()

	header := headerStyle.Render(" gatherd Monitor ")
	statusBadge := getStatusBadge(failureRate)
	headerLine := fmt.Sprintf("%s   %s   %s   %s",
		statusBadge,
		dimStyle.Render("Requests:"),
		valueStyle.Render(FormatCount(m.stats.Gather.Requests)),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	// Gather runs section
	content += "\n" + sectionStyle.Render("┃ Gather Runs") + "\n"

	rateSparkline := createSparkline(m.rateHistory)
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.rate)) +
		" " + getFailureBadge(failureRate) +
		"   " + rateSparkline + "\n"

	content += labelStyle.Render("  Failures: ") +
		dimStyle.Render("timeout=") + valueStyle.Render(FormatCount(m.stats.Gather.GlobalTimeouts)) +
		dimStyle.Render("  required=") + valueStyle.Render(FormatCount(m.stats.Gather.RequiredFailures)) +
		dimStyle.Render("  finalize=") + valueStyle.Render(FormatCount(m.stats.Gather.FinalizeFailures)) + "\n"

	failPercent := failureRate
	if failPercent > 1.0 {
		failPercent = 1.0
	}
	content += labelStyle.Render("  Fatal: ") +
		m.failProgress.ViewAs(failPercent) +
		" " + dimStyle.Render(FormatPercentage(failPercent)) + "\n"

	// Aggregate cache section
	content += "\n" + sectionStyle.Render("┃ Aggregate Cache") + "\n"

	hitSparkline := createSparkline(m.hitHistory)
	content += labelStyle.Render("  Hit rate: ") +
		valueStyle.Render(FormatPercentage(hitRate)) +
		" " + getHitBadge(hitRate) +
		"   " + hitSparkline + "\n"

	content += labelStyle.Render("  Ratio: ") +
		m.hitProgress.ViewAs(hitRate) +
		" " + dimStyle.Render(fmt.Sprintf("%d/%d", m.stats.Cache.Hits, m.stats.Cache.Hits+m.stats.Cache.Misses)) + "\n"

	entriesSparkline := createSparkline(m.entriesHistory)
	content += labelStyle.Render("  Entries: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.stats.Cache.Entries)) +
		"              " + entriesSparkline + "\n"

	content += labelStyle.Render("  Churn: ") +
		dimStyle.Render("expired=") + valueStyle.Render(FormatCount(m.stats.Cache.Expired)) +
		dimStyle.Render("  evicted=") + valueStyle.Render(FormatCount(m.stats.Cache.Evictions)) + "\n"

	// Collector warnings section
	content += "\n" + sectionStyle.Render("┃ Collector Warnings") + "\n"

	warnSparkline := createSparkline(m.warnHistory)
	content += labelStyle.Render("  Per poll: ") +
		valueStyle.Render(FormatCount(m.stats.Gather.CollectorWarnings)) +
		dimStyle.Render(" total") +
		"       " + warnSparkline + "\n"

	// Footer with keyboard shortcuts
	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}
