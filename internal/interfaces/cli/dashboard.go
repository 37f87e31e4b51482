package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"plughost.dev/cli/internal/application/supervisor"
	"plughost.dev/cli/internal/infrastructure/logging"
	"plughost.dev/cli/internal/infrastructure/menu"
	"plughost.dev/cli/internal/interfaces/di"
)

const dashboardConsoleLines = 8

// dashboardSource is what the dashboard reads from and acts on.
type dashboardSource interface {
	Plugins() []supervisor.HandleInfo
	Rescan(ctx context.Context) supervisor.LaunchReport
	Unload(id string) error
	Recent(n int) []logging.ConsoleLine
	Menu() string
}

type containerSource struct {
	c *di.Container
}

func (s containerSource) Plugins() []supervisor.HandleInfo { return s.c.Host.Plugins() }

func (s containerSource) Rescan(ctx context.Context) supervisor.LaunchReport {
	return s.c.Host.Rescan(ctx)
}

func (s containerSource) Unload(id string) error { return s.c.Supervisor.Unload(id) }

func (s containerSource) Recent(n int) []logging.ConsoleLine { return s.c.Console.Recent(n) }

func (s containerSource) Menu() string { return s.c.MenuBar.Render(menu.RenderOptions{}) }

// runDashboard shows the live dashboard until the user quits or ctx ends.
func runDashboard(ctx context.Context, c *di.Container, refresh time.Duration) error {
	model := newDashboardModel(ctx, containerSource{c: c}, c.Host.Root(), refresh)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}

// dashboardModel holds the state for the Bubble Tea dashboard
type dashboardModel struct {
	ctx     context.Context
	source  dashboardSource
	root    string
	refresh time.Duration

	plugins     []supervisor.HandleInfo
	console     []logging.ConsoleLine
	menu        string
	selectedRow int
	paused      bool
	status      string
	lastUpdate  time.Time
	now         func() time.Time
}

func newDashboardModel(ctx context.Context, source dashboardSource, root string, refresh time.Duration) dashboardModel {
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}
	return dashboardModel{
		ctx:     ctx,
		source:  source,
		root:    root,
		refresh: refresh,
		now:     time.Now,
	}
}

type tickMsg time.Time

type snapshotMsg struct {
	plugins []supervisor.HandleInfo
	console []logging.ConsoleLine
	menu    string
}

type statusMsg string

// Init implements the Bubble Tea init method
func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.snapshotCmd())
}

// Update implements the Bubble Tea update method
func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ":
			m.paused = !m.paused
			return m, nil

		case "up", "k":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			return m, nil

		case "down", "j":
			if m.selectedRow < len(m.plugins)-1 {
				m.selectedRow++
			}
			return m, nil

		case "r":
			m.status = "rescanning..."
			return m, m.rescanCmd()

		case "u":
			if m.selectedRow < len(m.plugins) {
				return m, m.unloadCmd(m.plugins[m.selectedRow])
			}
			return m, nil
		}

	case tickMsg:
		if m.ctx.Err() != nil {
			return m, tea.Quit
		}
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.tickCmd(), m.snapshotCmd())

	case snapshotMsg:
		m.plugins = msg.plugins
		m.console = msg.console
		m.menu = msg.menu
		m.lastUpdate = m.now()
		if m.selectedRow >= len(m.plugins) {
			m.selectedRow = max(len(m.plugins)-1, 0)
		}
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, m.snapshotCmd()
	}

	return m, nil
}

// View implements the Bubble Tea view method
func (m dashboardModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderPluginTable(),
		"",
		m.renderConsole(),
		"",
		m.menu,
		m.renderFooter(),
	)
}

func (m dashboardModel) renderHeader() string {
	running := 0
	for _, p := range m.plugins {
		if p.State == supervisor.StateRunning {
			running++
		}
	}

	status := okStyle.Bold(true).Render("LIVE")
	if m.paused {
		status = failStyle.Bold(true).Render("PAUSED")
	}

	root := m.root
	if root == "" {
		root = "(no plugin directory)"
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("plughost"),
		"  ",
		fmt.Sprintf("%s | Plugins: %d running / %d", root, running, len(m.plugins)),
		"  ",
		status,
	)

	line2 := fmt.Sprintf("Last Update: %s | Refresh Rate: %v", m.lastUpdate.Format("15:04:05"), m.refresh)
	if m.status != "" {
		line2 += " | " + m.status
	}

	return lipgloss.JoinVertical(lipgloss.Left, line1, mutedStyle.Render(line2), "")
}

func (m dashboardModel) renderPluginTable() string {
	if len(m.plugins) == 0 {
		return mutedStyle.Render("  No plugins loaded.")
	}

	rows := []string{headerStyle.Render(fmt.Sprintf("%-20s │ %-12s │ %-7s │ %-7s │ %s",
		"NAME", "STATUS", "PID", "LINES", "UPTIME"))}

	now := m.now()
	for i, p := range m.plugins {
		pid := "-"
		if p.PID > 0 {
			pid = fmt.Sprintf("%d", p.PID)
		}
		row := fmt.Sprintf("%-20s │ %-12s │ %-7s │ %-7d │ %s",
			truncateString(p.Name, 20),
			p.Status(),
			pid,
			p.LinesDelivered,
			p.Uptime(now).Round(time.Second),
		)
		switch {
		case i == m.selectedRow:
			row = selectStyle.Render(row)
		case p.State == supervisor.StateTerminated:
			row = warnStyle.Render(row)
		}
		rows = append(rows, row)
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m dashboardModel) renderConsole() string {
	lines := []string{headerStyle.Render("Console")}
	if len(m.console) == 0 {
		lines = append(lines, mutedStyle.Render("  (empty)"))
	}
	for _, l := range m.console {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			mutedStyle.Render(l.Time.Format("15:04:05")),
			okStyle.Render("["+l.Plugin+"]"),
			truncateString(l.Text, 100)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m dashboardModel) renderFooter() string {
	return mutedStyle.Render("Controls: [Space] Pause/Resume | [↑↓] Navigate | [u] Unload | [r] Rescan | [q] Quit")
}

func (m dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m dashboardModel) snapshotCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return snapshotMsg{
			plugins: source.Plugins(),
			console: source.Recent(dashboardConsoleLines),
			menu:    source.Menu(),
		}
	}
}

func (m dashboardModel) rescanCmd() tea.Cmd {
	source, ctx := m.source, m.ctx
	return func() tea.Msg {
		report := source.Rescan(ctx)
		return statusMsg(fmt.Sprintf("rescan: %d launched, %d failed",
			len(report.Launched), len(report.Failed)+len(report.ParseErrors)))
	}
}

func (m dashboardModel) unloadCmd(p supervisor.HandleInfo) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		if err := source.Unload(p.ID); err != nil {
			return statusMsg(fmt.Sprintf("unload %s: %v", p.Name, err))
		}
		return statusMsg("unloaded " + p.Name)
	}
}
