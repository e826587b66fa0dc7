package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

var (
	// Version information
	version   = "2.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	downloadDir   string
	databasePath  string
	concurrent    int
	accountName   string
	useTUI        bool
	notifications bool
	verbose       bool

	// Root-only flags mirroring the update command
	runUpdate bool
)

// errPoolsFailed makes the process exit with status 1 after the report
// has already been printed
var errPoolsFailed = errors.New("one or more pools failed")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "e6dl [poolId|poolUrl]...",
	Short: "Download e621 pools into page-numbered folders",
	Long: `e6dl downloads e621 pools into folders named "{Pool Name} by {Artist}",
one file per post named after its page in the pool.

Every download is recorded in a local database so pools can be brought up
to date later with --update. Without arguments e6dl asks for pool IDs or
URLs once.`,
	Example: `  # Download two pools
  e6dl 12345 https://e621.net/pools/67890

  # Download into a specific directory with three workers
  e6dl -d ~/comics --concurrent 3 12345

  # Check every recorded pool for new posts and confirm each update
  e6dl --update

  # Update without prompting, re-fetching files that went missing
  e6dl --update --yes --verify`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runUpdate {
			if len(args) > 0 {
				return fmt.Errorf("--update does not take pool arguments")
			}
			return runUpdateCmd(cmd, nil)
		}
		if len(args) == 0 {
			return runPrompted(cmd)
		}
		return runDownload(cmd, args)
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errPoolsFailed) {
			ui.PrintError("Error", err.Error())
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/e6dl/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	flags.StringVarP(&downloadDir, "download-dir", "d", "", "root directory pool folders are created in")
	flags.StringVar(&databasePath, "database", "", "pool database file (default is $XDG_DATA_HOME/e6dl/pools.json)")
	flags.IntVar(&concurrent, "concurrent", 0, "parallel post downloads per pool (1-4)")
	flags.StringVarP(&accountName, "account", "a", "", "use a specific stored e621 account")
	flags.BoolVar(&useTUI, "tui", false, "show a full-screen progress view")
	flags.BoolVar(&notifications, "notify", false, "send a desktop notification when the run finishes")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print a line per post instead of a progress bar")

	rootCmd.Flags().BoolVar(&runUpdate, "update", false, "update every recorded pool (same as 'e6dl update')")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "accept every update without prompting")
	rootCmd.Flags().BoolVar(&verifyFiles, "verify", false, "re-download recorded posts whose file is missing")

	rootCmd.SetVersionTemplate(`e6dl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// flagOverrides collects the flags that override the configuration
func flagOverrides() map[string]interface{} {
	flags := make(map[string]interface{})
	if downloadDir != "" {
		flags["download-dir"] = downloadDir
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if databasePath != "" {
		flags["database"] = databasePath
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return flags
}
