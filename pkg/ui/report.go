package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
)

// PrintReport writes the end-of-run summary for every pool in report
func PrintReport(w io.Writer, report *poolsync.Report) {
	if len(report.Pools) == 0 {
		fmt.Fprintln(w, Dim("No pools processed"))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, Cyan("Summary"))
	for _, ps := range report.Pools {
		printPoolStatus(w, ps)
	}

	parts := []string{
		fmt.Sprintf("%d pools", len(report.Pools)),
		fmt.Sprintf("%d posts downloaded", report.Downloaded()),
	}
	if n := report.PostFailures(); n > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d posts failed", n)))
	}
	if n := report.Count(poolsync.StateFailed); n > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d pools failed", n)))
	}
	if n := report.Count(poolsync.StateSkipped); n > 0 {
		parts = append(parts, Yellow(fmt.Sprintf("%d skipped", n)))
	}
	parts = append(parts, FormatDuration(report.Duration))
	fmt.Fprintln(w, strings.Join(parts, " • "))
}

func printPoolStatus(w io.Writer, ps *poolsync.PoolStatus) {
	name := ps.Name
	if name == "" {
		name = "pool"
	}
	label := fmt.Sprintf("%s (%d)", name, ps.PoolID)

	switch ps.State {
	case poolsync.StateFailed:
		fmt.Fprintf(w, "  %s %s: %v\n", Red("✗"), label, ps.Err)
	case poolsync.StateUpToDate:
		fmt.Fprintf(w, "  %s %s: up to date\n", Dim("•"), label)
	case poolsync.StateSkipped:
		fmt.Fprintf(w, "  %s %s: skipped\n", Yellow("-"), label)
	case poolsync.StateDone:
		mark := Green("✓")
		if ps.Summary != nil && !ps.Summary.OK() {
			mark = Yellow("!")
		}
		fmt.Fprintf(w, "  %s %s: %s\n", mark, label, describeSummary(ps))
	default:
		fmt.Fprintf(w, "  %s %s: %s\n", Dim("?"), label, ps.State)
	}

	if ps.Summary == nil {
		return
	}
	for _, f := range ps.Summary.Failures {
		fmt.Fprintf(w, "      %s page %d (post %d): %v\n", Red("✗"), f.Page, f.PostID, f.Err)
	}
}

func describeSummary(ps *poolsync.PoolStatus) string {
	s := ps.Summary
	if s == nil {
		return ps.State.String()
	}

	parts := []string{fmt.Sprintf("%d downloaded", s.Succeeded)}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d already present", s.Skipped))
	}
	if s.Cancelled > 0 {
		parts = append(parts, fmt.Sprintf("%d cancelled", s.Cancelled))
	}
	if ps.Plan != nil && (len(ps.Plan.Relocations) > 0 || len(ps.Plan.Removed) > 0) {
		parts = append(parts, fmt.Sprintf("%d renumbered", len(ps.Plan.Relocations)+len(ps.Plan.Removed)))
	}
	if s.Bytes > 0 {
		parts = append(parts, FormatBytes(s.Bytes))
	}
	return strings.Join(parts, ", ")
}
