package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

var (
	assumeYes   bool
	verifyFiles bool
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Bring every recorded pool up to date",
	Long: `Check every pool in the database for new, moved or removed posts and
apply the changes you confirm. Declined pools are left untouched.

New posts keep their page number from e621. When posts moved, existing
files are renumbered to match; files of posts removed from the pool are
renamed to removed-{postId}.{ext}.`,
	Example: `  # Confirm each pool interactively
  e6dl update

  # Accept everything and re-fetch files deleted from disk
  e6dl update --yes --verify`,
	Args: cobra.NoArgs,
	RunE: runUpdateCmd,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "accept every update without prompting")
	updateCmd.Flags().BoolVar(&verifyFiles, "verify", false, "re-download recorded posts whose file is missing")
}

func runUpdateCmd(cmd *cobra.Command, args []string) error {
	// Prompts need the terminal, so the TUI only runs unattended
	if useTUI && !assumeYes {
		ui.PrintWarning("--tui needs --yes when updating, showing plain progress instead")
	}

	return execute(cmd, assumeYes, func(ctx context.Context, s *session) (*poolsync.Report, error) {
		if verifyFiles {
			if err := verifyDatabase(s); err != nil {
				return nil, err
			}
		}
		return s.syncer.Update(ctx, ui.NewPrompter(os.Stdin, os.Stdout, assumeYes))
	})
}

// verifyDatabase forgets recorded posts whose file is gone so the update
// downloads them again
func verifyDatabase(s *session) error {
	var missing int
	err := s.tracker.Update(func(db *pooldb.Database) error {
		for _, ids := range pooldb.Verify(db, s.cfg.Download.RootDirectory, s.log) {
			missing += len(ids)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("missing", missing).Info("Verified downloaded files")
	return nil
}
