package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// e621 site palette
	e6Navy      = lipgloss.Color("#020F23")
	e6Panel     = lipgloss.Color("#152F56")
	e6Blue      = lipgloss.Color("#2E76B4")
	e6LightBlue = lipgloss.Color("#B4C7D9")
	e6Gold      = lipgloss.Color("#FCB328")
	e6Green     = lipgloss.Color("#3E9E49")
	e6Orange    = lipgloss.Color("#F48F41")
	e6Red       = lipgloss.Color("#E45F5F")
	dimText     = lipgloss.Color("#8A9BB0")

	baseStyle = lipgloss.NewStyle().
			Background(e6Navy).
			Foreground(e6LightBlue)

	headerStyle = lipgloss.NewStyle().
			Foreground(e6Gold).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(e6Blue).
			Background(e6Panel).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(e6Gold).
			Foreground(e6Navy).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(e6LightBlue).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(e6Gold)

	successStyle = lipgloss.NewStyle().
			Foreground(e6Green).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(e6Red).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(e6Orange).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimText)

	activeItemStyle = lipgloss.NewStyle().
			Foreground(e6Gold).
			PaddingLeft(1)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(dimText)

	logMessageStyle = lipgloss.NewStyle().
			Foreground(e6LightBlue)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimText).
			Padding(0, 0, 0, 2)
)

// poolStatusStyle returns the style for a pool's status marker
func poolStatusStyle(pool *PoolProgress) lipgloss.Style {
	switch {
	case !pool.Finished:
		return warningStyle
	case pool.Failed > 0:
		return errorStyle
	default:
		return successStyle
	}
}
