package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/biscuitvixen/e6-dl/pkg/e621"
)

// PoolStartMsg is sent when a pool download starts
type PoolStartMsg struct {
	PoolID  int
	Name    string
	Pending int
	Present int
}

// PostStartMsg is sent when a worker starts fetching a post
type PostStartMsg struct {
	PoolID int
	Ref    e621.PostRef
}

// PostDoneMsg is sent when a post is written or has failed
type PostDoneMsg struct {
	PoolID int
	Ref    e621.PostRef
	Size   int64
	Err    error
}

// PoolDoneMsg is sent when a pool download finishes
type PoolDoneMsg struct {
	PoolID    int
	Succeeded int
	Failed    int
	Cancelled int
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case PoolStartMsg:
		m.StartPool(msg.PoolID, msg.Name, msg.Pending, msg.Present)
		m.AddLogMessage("INFO", fmt.Sprintf("Pool %d: %d to download", msg.PoolID, msg.Pending))
		return m, nil

	case PostStartMsg:
		m.StartPost(msg.PoolID, msg.Ref)
		return m, nil

	case PostDoneMsg:
		m.FinishPost(msg.PoolID, msg.Ref, msg.Size, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage("ERROR", fmt.Sprintf("Page %d (post %d): %v", msg.Ref.Page, msg.Ref.ID, msg.Err))
		}
		return m, nil

	case PoolDoneMsg:
		m.FinishPool(msg.PoolID)
		level := "SUCCESS"
		if msg.Failed > 0 || msg.Cancelled > 0 {
			level = "WARN"
		}
		m.AddLogMessage(level, fmt.Sprintf("Pool %d finished: %d downloaded, %d failed", msg.PoolID, msg.Succeeded, msg.Failed))
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// cancel stops the download run; further calls do nothing
func (m *Model) cancel() {
	if m.cancelled {
		return
	}
	m.cancelled = true
	if m.onCancel != nil {
		m.onCancel()
	}
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
