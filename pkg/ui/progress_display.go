package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
	"github.com/biscuitvixen/e6-dl/pkg/e621"
)

// ProgressDisplay prints pool download progress as a single updating line,
// or one line per post in verbose mode. It implements downloader.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	verbose    bool
	poolName   string
	total      int
	done       int
	failed     int
	bytes      int64
	current    int
	startTime  time.Time
	lineActive bool
}

// NewProgressDisplay creates a progress display writing to out
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{out: out, verbose: verbose}
}

// PoolStarted resets the counters for a new pool
func (p *ProgressDisplay) PoolStarted(pool *e621.Pool, pending int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.poolName = pool.Name
	p.total = pending
	p.done, p.failed, p.bytes, p.current = 0, 0, 0, 0
	p.startTime = time.Now()

	present := len(pool.Posts) - pending
	fmt.Fprintf(p.out, "%s %s (%d): %d to download", Magenta("→"), Cyan(pool.Name), pool.ID, pending)
	if present > 0 {
		fmt.Fprintf(p.out, ", %d already present", present)
	}
	fmt.Fprintln(p.out)
}

// PostStarted records the page being fetched
func (p *ProgressDisplay) PostStarted(poolID int, ref e621.PostRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = ref.Page
	if !p.verbose {
		p.printProgress()
	}
}

// PostFinished counts a finished post
func (p *ProgressDisplay) PostFinished(poolID int, ref e621.PostRef, size int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failed++
	} else {
		p.done++
		p.bytes += size
	}

	if !p.verbose {
		p.printProgress()
		return
	}
	if err != nil {
		fmt.Fprintf(p.out, "  %s page %d (post %d): %v\n", Red("✗"), ref.Page, ref.ID, err)
		return
	}
	fmt.Fprintf(p.out, "  %s page %d (post %d) %s\n", Green("✓"), ref.Page, ref.ID, Dim(FormatBytes(size)))
}

// PoolFinished ends the progress line
func (p *ProgressDisplay) PoolFinished(summary *downloader.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lineActive {
		fmt.Fprintln(p.out)
		p.lineActive = false
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	if p.total == 0 {
		return
	}

	finished := p.done + p.failed
	barWidth := 20
	filled := finished * barWidth / p.total
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan(p.poolName),
		bar,
		finished,
		p.total,
		FormatBytes(p.bytes),
		p.eta(finished),
	)
	if p.current > 0 && finished < p.total {
		line += fmt.Sprintf(" • page %d", p.current)
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
	p.lineActive = true
}

// eta estimates time remaining from the average time per finished post
func (p *ProgressDisplay) eta(finished int) string {
	if finished == 0 {
		return "calculating..."
	}
	perPost := time.Since(p.startTime) / time.Duration(finished)
	return FormatDuration(perPost * time.Duration(p.total-finished))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
