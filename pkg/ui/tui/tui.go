package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
	"github.com/biscuitvixen/e6-dl/pkg/e621"
)

// TUI is a full-screen progress view for a download run. It implements
// downloader.Observer; every event is forwarded to the bubbletea program.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ downloader.Observer = (*TUI)(nil)

// New creates a TUI. onCancel is called when the user quits before the run
// finishes.
func New(onCancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(onCancel)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Run blocks until Quit is called or the user exits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit stops the program
func (t *TUI) Quit() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	t.program.Send(msg)
}

// PoolStarted implements downloader.Observer
func (t *TUI) PoolStarted(pool *e621.Pool, pending int) {
	t.Send(PoolStartMsg{
		PoolID:  pool.ID,
		Name:    pool.Name,
		Pending: pending,
		Present: len(pool.Posts) - pending,
	})
}

// PostStarted implements downloader.Observer
func (t *TUI) PostStarted(poolID int, ref e621.PostRef) {
	t.Send(PostStartMsg{PoolID: poolID, Ref: ref})
}

// PostFinished implements downloader.Observer
func (t *TUI) PostFinished(poolID int, ref e621.PostRef, size int64, err error) {
	t.Send(PostDoneMsg{PoolID: poolID, Ref: ref, Size: size, Err: err})
}

// PoolFinished implements downloader.Observer
func (t *TUI) PoolFinished(summary *downloader.Summary) {
	t.Send(PoolDoneMsg{
		PoolID:    summary.PoolID,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Cancelled: summary.Cancelled,
	})
}

// LogWriter returns a writer that shows zerolog JSON events in the log panel
func (t *TUI) LogWriter() io.Writer {
	return NewLogWriter(t.Send)
}
