package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/biscuitvixen/e6-dl/pkg/auth"
	"github.com/biscuitvixen/e6-dl/pkg/config"
	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage the e6dl configuration file.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (E6DL_*)
  - .env files in the working directory and the config directory
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to $XDG_CONFIG_HOME/e6dl/config.yaml unless a different
path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration after merging every source. The API key is
masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges, including e621's request rate limit
  - Whether the download, database and log directories can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# e6dl configuration file
#
# Every option can also be set with an E6DL_ environment variable,
# for example E6DL_DOWNLOAD_DIR or E6DL_API_KEY.

# e621 API
api:
  base_url: "https://e621.net"

  # e621 rejects requests without a descriptive user agent
  user_agent: "e6dl/2.0 (by biscuit_fox on e621)"

  # Optional credentials. Prefer 'e6dl auth login', which keeps the key
  # out of this file.
  username: ""
  api_key: ""

  # Timeout for API requests
  timeout: 30s

# Request pacing. e621 allows at most 2 requests per second.
rate_limit:
  requests_per_second: 1
  burst: 1

# Retries for network errors, rate limiting and server errors
retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s

download:
  # Pool folders are created here as "{Pool Name} by {Artist}"
  root_directory: "."

  # Parallel post downloads per pool, 1 to 4
  concurrent_downloads: 2

  # Time allowed for a single media file, body included
  download_timeout: 2m

  # Pools checked at the same time during an update
  check_concurrency: 2

# Pool database. Defaults to $XDG_DATA_HOME/e6dl/pools.json
# database:
#   path: ""

logging:
  # debug, info, warn, error
  level: "info"

  # Optional file receiving JSON log lines
  file: ""
`

func configInitPath() string {
	if configFile != "" {
		return configFile
	}
	return config.DefaultConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configInitPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("To overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := writeExampleConfig(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file, at least download.root_directory")
	fmt.Println("2. Run 'e6dl config validate' to check the configuration")
	fmt.Println("3. Start downloading with 'e6dl <poolId>'")
	return nil
}

func writeExampleConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (E6DL_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Printf("4. Configuration file: %s (if present)\n", config.DefaultConfigPath())
	}
	fmt.Println("5. Default values")
	return nil
}

// maskedConfig returns a copy of cfg that is safe to print
func maskedConfig(cfg *config.Config) *config.Config {
	display := *cfg
	if display.API.APIKey != "" {
		display.API.APIKey = auth.SanitizeAccount(&auth.Account{APIKey: cfg.API.APIKey}).APIKey
	}
	return &display
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	problems, warnings := checkPaths(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return errors.New("configuration is not usable")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Download directory: %s\n", cfg.Download.RootDirectory)
	fmt.Printf("  Database: %s\n", cfg.Database.Path)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %.2g requests/second\n", cfg.RateLimit.RequestsPerSecond)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// checkPaths reports directories that cannot be created and settings
// worth a warning
func checkPaths(cfg *config.Config) (problems, warnings []string) {
	dirs := []struct {
		label string
		path  string
	}{
		{"download directory", cfg.Download.RootDirectory},
		{"database directory", filepath.Dir(cfg.Database.Path)},
	}
	if cfg.Logging.File != "" {
		dirs = append(dirs, struct {
			label string
			path  string
		}{"log directory", filepath.Dir(cfg.Logging.File)})
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d.path, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create %s: %v", d.label, err))
		}
	}

	if cfg.RateLimit.RequestsPerSecond > 1 {
		warnings = append(warnings, "e621 asks clients to stay at 1 request per second")
	}
	if cfg.API.APIKey != "" {
		warnings = append(warnings, "API key is stored in plain text; consider 'e6dl auth login'")
	}
	return problems, warnings
}
