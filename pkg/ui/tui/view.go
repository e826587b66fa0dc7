package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

const logo = "e6dl  ·  e621 pool downloader"

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, headerStyle.Width(m.width).Render(m.spinner.View()+" "+logo))

	columnWidth := (m.width - 2) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(columnWidth),
		m.renderActivePanel(columnWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderPoolsPanel(columnWidth),
		m.renderLogsPanel(columnWidth),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q cancel • ? help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderStatsPanel renders the session totals
func (m *Model) renderStatsPanel(width int) string {
	done, failed, bytes := m.Totals()

	stats := []string{
		statLine("Elapsed:", formatDuration(time.Since(m.sessionStartTime))),
		statLine("Downloaded:", fmt.Sprintf("%d posts", done)),
		statLine("Size:", ui.FormatBytes(bytes)),
		statLine("ETA:", formatDuration(m.ETA())),
	}
	if failed > 0 {
		stats = append(stats, errorStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	if m.cancelled {
		stats = append(stats, warningStyle.Render("Cancelling..."))
	}

	return renderPanel(width, " SESSION ", lipgloss.JoinVertical(lipgloss.Left, stats...))
}

func statLine(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

// renderActivePanel lists posts currently being fetched
func (m *Model) renderActivePanel(width int) string {
	active := m.ActivePosts()
	if len(active) == 0 {
		return renderPanel(width, " ACTIVE ", dimStyle.Render("Idle"))
	}

	var lines []string
	for _, post := range active {
		lines = append(lines, activeItemStyle.Render(fmt.Sprintf("%s pool %d page %d (post %d) %s",
			m.spinner.View(), post.PoolID, post.Ref.Page, post.Ref.ID,
			dimStyle.Render(formatDuration(time.Since(post.Started))))))
	}
	return renderPanel(width, " ACTIVE ", lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderPoolsPanel shows a progress bar per pool
func (m *Model) renderPoolsPanel(width int) string {
	pools := m.Pools()
	if len(pools) == 0 {
		return renderPanel(width, " POOLS ", dimStyle.Render("Waiting for pools..."))
	}

	bar := m.bar
	bar.Width = width - 8
	if bar.Width < 10 {
		bar.Width = 10
	}

	var lines []string
	for _, pool := range pools {
		marker := poolStatusStyle(pool).Render("●")
		counts := fmt.Sprintf("%d/%d", pool.Done+pool.Failed, pool.Pending)
		if pool.Present > 0 {
			counts += fmt.Sprintf(" (+%d present)", pool.Present)
		}
		lines = append(lines,
			fmt.Sprintf("%s %s %s", marker, pool.Name, dimStyle.Render(counts)),
			bar.ViewAs(pool.Percent()),
		)
	}
	return renderPanel(width, " POOLS ", lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderLogsPanel renders the most recent log lines
func (m *Model) renderLogsPanel(width int) string {
	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 22
	if maxMsgLen < 10 {
		maxMsgLen = 10
	}

	var logs []string
	for _, entry := range m.logMessages[start:] {
		message := entry.Message
		if len(message) > maxMsgLen {
			message = message[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(entry.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("%-7s", entry.Level)),
			logMessageStyle.Render(message),
		))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}
	return renderPanel(width, " LOG ", content)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `  q / ctrl+c  cancel the run; finished posts stay saved
  ctrl+l      clear the log
  ?           toggle this help

  ` + warningStyle.Render("●") + ` downloading   ` + successStyle.Render("●") + ` complete   ` + errorStyle.Render("●") + ` finished with failures`

	return panelStyle.Width(m.width - 2).Render(help)
}

func renderPanel(width int, title, content string) string {
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content),
	)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
