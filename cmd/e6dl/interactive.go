package main

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

// interactiveCmd represents the interactive command
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Download pools entered at a prompt until you type exit",
	Long: `Prompt for pool IDs or URLs repeatedly and download each batch.

Several pools can be entered at once, separated by spaces or commas.
Type exit or press Ctrl+D to quit.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := newSession(cfg, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.dbReset != nil {
		ui.PrintWarning("Pool database was unreadable and has been reset", s.dbReset.Error())
	}
	if err := s.connect(); err != nil {
		return err
	}
	s.downloader.SetObserver(ui.NewProgressDisplay(os.Stdout, verbose))

	ui.PrintLogo()
	prompter := ui.NewPrompter(os.Stdin, os.Stdout, false)
	anyFailed := false

	for {
		poolArgs, err := prompter.ReadPoolArgs("Pool IDs or URLs (exit to quit): ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(poolArgs) == 0 {
			continue
		}
		if len(poolArgs) == 1 && isExitCommand(poolArgs[0]) {
			break
		}

		// Signals only cancel a running batch; at the prompt they end the process
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		report := s.syncer.DownloadAll(ctx, poolArgs)
		interrupted := ctx.Err() != nil
		stop()

		ui.PrintReport(os.Stdout, report)
		if report.AnyFailed() {
			anyFailed = true
		}
		if interrupted {
			ui.PrintWarning("Interrupted", "finished posts are kept; run again to resume")
			return errPoolsFailed
		}
	}

	if anyFailed {
		return errPoolsFailed
	}
	return nil
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		return true
	}
	return false
}
