package tui

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/biscuitvixen/e6-dl/pkg/e621"
)

// PoolProgress is the state of one pool in the current run
type PoolProgress struct {
	ID       int
	Name     string
	Pending  int
	Present  int
	Done     int
	Failed   int
	Bytes    int64
	Finished bool
}

// Percent returns the share of pending posts that have finished
func (p *PoolProgress) Percent() float64 {
	if p.Pending == 0 {
		return 1
	}
	return float64(p.Done+p.Failed) / float64(p.Pending)
}

// ActivePost is a post currently being fetched
type ActivePost struct {
	PoolID  int
	Ref     e621.PostRef
	Started time.Time
}

type postKey struct {
	poolID int
	postID int
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model represents the TUI model. It is only touched from the bubbletea
// event loop.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	pools     []*PoolProgress
	poolIndex map[int]*PoolProgress
	active    map[postKey]*ActivePost

	totalDone        int
	totalFailed      int
	totalBytes       int64
	sessionStartTime time.Time

	width          int
	height         int
	showHelp       bool
	cancelled      bool
	logMessages    []LogMessage
	maxLogMessages int

	// onCancel is called once when the user quits
	onCancel func()
}

// NewModel creates a new TUI model. onCancel may be nil.
func NewModel(onCancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(e6Gold)

	return &Model{
		spinner:          s,
		bar:              progress.New(progress.WithGradient(string(e6Blue), string(e6Gold))),
		poolIndex:        make(map[int]*PoolProgress),
		active:           make(map[postKey]*ActivePost),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		onCancel:         onCancel,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartPool registers a pool about to be downloaded
func (m *Model) StartPool(id int, name string, pending, present int) {
	pool, ok := m.poolIndex[id]
	if !ok {
		pool = &PoolProgress{ID: id}
		m.poolIndex[id] = pool
		m.pools = append(m.pools, pool)
	}
	*pool = PoolProgress{ID: id, Name: name, Pending: pending, Present: present}
}

// StartPost marks a post as being fetched
func (m *Model) StartPost(poolID int, ref e621.PostRef) {
	m.active[postKey{poolID, ref.ID}] = &ActivePost{PoolID: poolID, Ref: ref, Started: time.Now()}
}

// FinishPost records the outcome of a post
func (m *Model) FinishPost(poolID int, ref e621.PostRef, size int64, err error) {
	delete(m.active, postKey{poolID, ref.ID})

	pool := m.poolIndex[poolID]
	if err != nil {
		m.totalFailed++
		if pool != nil {
			pool.Failed++
		}
		return
	}

	m.totalDone++
	m.totalBytes += size
	if pool != nil {
		pool.Done++
		pool.Bytes += size
	}
}

// FinishPool marks a pool as finished and drops its remaining active posts
func (m *Model) FinishPool(poolID int) {
	if pool, ok := m.poolIndex[poolID]; ok {
		pool.Finished = true
	}
	for key := range m.active {
		if key.poolID == poolID {
			delete(m.active, key)
		}
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimText
	switch level {
	case "ERROR":
		color = e6Red
	case "WARN":
		color = e6Orange
	case "SUCCESS":
		color = e6Green
	case "INFO":
		color = e6LightBlue
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Pools returns the pools seen so far in start order
func (m *Model) Pools() []*PoolProgress {
	return m.pools
}

// ActivePosts returns the posts in flight ordered by pool and page
func (m *Model) ActivePosts() []*ActivePost {
	active := make([]*ActivePost, 0, len(m.active))
	for _, post := range m.active {
		active = append(active, post)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].PoolID != active[j].PoolID {
			return active[i].PoolID < active[j].PoolID
		}
		return active[i].Ref.Page < active[j].Ref.Page
	})
	return active
}

// Totals returns the posts downloaded and failed and the bytes written
func (m *Model) Totals() (done, failed int, bytes int64) {
	return m.totalDone, m.totalFailed, m.totalBytes
}

// ETA estimates the time left for unfinished pools from the session average
func (m *Model) ETA() time.Duration {
	finished := m.totalDone + m.totalFailed
	if finished == 0 {
		return 0
	}

	remaining := 0
	for _, pool := range m.pools {
		if !pool.Finished {
			remaining += pool.Pending - pool.Done - pool.Failed
		}
	}
	perPost := time.Since(m.sessionStartTime) / time.Duration(finished)
	return perPost * time.Duration(remaining)
}
