package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <poolId|poolUrl>...",
	Short: "Download one or more pools",
	Long: `Download pools by ID or URL. Each pool goes into "{Pool Name} by {Artist}"
under the download directory with files named after their page.

Posts already recorded for a pool are not fetched again. If the pool was
reordered on e621 since the last run, existing files are renumbered first.`,
	Example: `  # Download by ID and by URL
  e6dl download 12345 https://e621.net/pools/67890

  # Show a full-screen progress view
  e6dl download --tui 12345`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	return execute(cmd, true, func(ctx context.Context, s *session) (*poolsync.Report, error) {
		return s.syncer.DownloadAll(ctx, args), ctx.Err()
	})
}

// runPrompted asks for pool IDs once and downloads them
func runPrompted(cmd *cobra.Command) error {
	ui.PrintLogo()
	prompter := ui.NewPrompter(os.Stdin, os.Stdout, false)
	args, err := prompter.ReadPoolArgs("Pool IDs or URLs: ")
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("no pools given")
	}
	return runDownload(cmd, args)
}
