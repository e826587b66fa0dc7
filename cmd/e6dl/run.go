package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/biscuitvixen/e6-dl/pkg/config"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
	"github.com/biscuitvixen/e6-dl/pkg/ui"
	"github.com/biscuitvixen/e6-dl/pkg/ui/tui"
)

// workFunc is one run against a connected session
type workFunc func(ctx context.Context, s *session) (*poolsync.Report, error)

// execute loads the configuration, runs work with progress output and
// prints the report. SIGINT and SIGTERM cancel the run; posts finished
// before that stay recorded.
func execute(cmd *cobra.Command, tuiAllowed bool, work workFunc) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *poolsync.Report
	if useTUI && tuiAllowed {
		report, err = executeWithTUI(ctx, cfg, work)
	} else {
		report, err = executeWithProgress(ctx, cfg, ui.NewProgressDisplay(os.Stdout, verbose), work)
	}

	// the run's logger is closed by now and may have been writing to the TUI
	log, closer, logErr := logger.New(&cfg.Logging)
	if logErr != nil {
		log = nil
	} else {
		defer closer.Close()
	}
	return finish(report, err, os.Stdout, log)
}

// finish prints the report, notifies and maps the outcome to an error
func finish(report *poolsync.Report, err error, out io.Writer, log logger.Logger) error {
	if report != nil {
		ui.PrintReport(out, report)
		if notifications {
			notifier := ui.NewNotifier()
			notifier.SetLogger(log)
			notifier.NotifyReport(report)
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Interrupted", "finished posts are kept; run again to resume")
			return errPoolsFailed
		}
		return err
	}
	if report != nil && report.AnyFailed() {
		return errPoolsFailed
	}
	return nil
}

func executeWithProgress(ctx context.Context, cfg *config.Config, observer *ui.ProgressDisplay, work workFunc) (*poolsync.Report, error) {
	s, err := newSession(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if s.dbReset != nil {
		ui.PrintWarning("Pool database was unreadable and has been reset", s.dbReset.Error())
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	s.downloader.SetObserver(observer)
	return work(ctx, s)
}

// executeWithTUI runs work in the background while the TUI owns the
// terminal. Quitting the TUI cancels the run.
func executeWithTUI(ctx context.Context, cfg *config.Config, work workFunc) (*poolsync.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.New(cancel)

	var (
		report  *poolsync.Report
		workErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer view.Quit()

		s, err := newSession(cfg, view.LogWriter())
		if err != nil {
			workErr = err
			return
		}
		defer s.Close()

		if s.dbReset != nil {
			s.log.WithError(s.dbReset).Warn("Pool database was unreadable and has been reset")
		}
		if err := s.connect(); err != nil {
			workErr = err
			return
		}
		s.downloader.SetObserver(view)
		report, workErr = work(ctx, s)
	}()

	if err := view.Run(); err != nil {
		cancel()
		<-done
		return report, fmt.Errorf("terminal UI failed: %w", err)
	}
	<-done
	return report, workErr
}
