package poolsync

import (
	"time"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
)

// State is the position of a pool in the update workflow
type State int

const (
	StatePending State = iota
	StateChecked
	StateUpToDate
	StateHasUpdates
	StateConfirmed
	StateDownloading
	StateDone
	StateSkipped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateChecked:
		return "checked"
	case StateUpToDate:
		return "up to date"
	case StateHasUpdates:
		return "has updates"
	case StateConfirmed:
		return "confirmed"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PoolStatus tracks one pool through a run
type PoolStatus struct {
	PoolID  int
	Name    string
	State   State
	Plan    *Plan
	Summary *downloader.Summary
	Err     error
}

func (ps *PoolStatus) fail(err error) {
	ps.State = StateFailed
	ps.Err = err
}

// Report collects the outcome of a run across pools
type Report struct {
	Pools    []*PoolStatus
	Duration time.Duration
}

// Count returns how many pools ended in state
func (r *Report) Count(state State) int {
	n := 0
	for _, ps := range r.Pools {
		if ps.State == state {
			n++
		}
	}
	return n
}

// Downloaded returns the number of posts downloaded across all pools
func (r *Report) Downloaded() int {
	n := 0
	for _, ps := range r.Pools {
		if ps.Summary != nil {
			n += ps.Summary.Succeeded
		}
	}
	return n
}

// PostFailures returns the number of posts that failed across all pools
func (r *Report) PostFailures() int {
	n := 0
	for _, ps := range r.Pools {
		if ps.Summary != nil {
			n += ps.Summary.Failed
		}
	}
	return n
}

// AnyFailed reports whether some pool failed entirely
func (r *Report) AnyFailed() bool {
	return r.Count(StateFailed) > 0
}
