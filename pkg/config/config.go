package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName is used for XDG directory names and the keyring service
const AppName = "e6dl"

// Config holds all configuration options for the pool downloader
type Config struct {
	// e621 API settings and optional credentials
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry policy for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Local pool database
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds e621-specific configuration
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Username  string        `yaml:"username" json:"username"`
	APIKey    string        `yaml:"api_key" json:"api_key"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// HasCredentials reports whether both username and API key are set
func (a APIConfig) HasCredentials() bool {
	return a.Username != "" && a.APIKey != ""
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	RootDirectory       string        `yaml:"root_directory" json:"root_directory"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	CheckConcurrency    int           `yaml:"check_concurrency" json:"check_concurrency"`
}

// DatabaseConfig holds the location of the pool database
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://e621.net",
			UserAgent: "e6dl/2.0 (by biscuit_fox on e621)",
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			// e621 allows 2 requests per second at most and asks for 1
			RequestsPerSecond: 1,
			Burst:             1,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Download: DownloadConfig{
			RootDirectory:       ".",
			ConcurrentDownloads: 2,
			DownloadTimeout:     2 * time.Minute,
			CheckConcurrency:    2,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDatabasePath returns the pool database location under the XDG data home
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, AppName, "pools.json")
}

// DefaultConfigPath returns the config file location under the XDG config home
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// ConfigDir returns the XDG config directory of the application
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("E6DL_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("E6DL_USER_AGENT"); v != "" {
		c.API.UserAgent = v
	}
	if v := os.Getenv("E6DL_USERNAME"); v != "" {
		c.API.Username = v
	}
	if v := os.Getenv("E6DL_API_KEY"); v != "" {
		c.API.APIKey = v
	}

	if v := os.Getenv("E6DL_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid E6DL_REQUESTS_PER_SECOND: %w", err)
		}
		c.RateLimit.RequestsPerSecond = rps
	}

	if v := os.Getenv("E6DL_DOWNLOAD_DIR"); v != "" {
		c.Download.RootDirectory = v
	}
	if v := os.Getenv("E6DL_CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid E6DL_CONCURRENT_DOWNLOADS: %w", err)
		}
		c.Download.ConcurrentDownloads = n
	}

	if v := os.Getenv("E6DL_DATABASE"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("E6DL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("E6DL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	locations := []string{
		".e6dl.yaml",
		".e6dl.yml",
		DefaultConfigPath(),
		filepath.Join(ConfigDir(), "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base URL is required"))
	}
	if c.API.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required by e621"))
	}
	if (c.API.Username == "") != (c.API.APIKey == "") {
		errs = append(errs, errors.New("username and API key must be set together"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.RequestsPerSecond > 2 {
		errs = append(errs, errors.New("requests per second must not exceed e621's limit of 2"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}

	if c.Download.RootDirectory == "" {
		errs = append(errs, errors.New("download root directory is required"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 4 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 4"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.CheckConcurrency <= 0 {
		errs = append(errs, errors.New("check concurrency must be positive"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["download-dir"].(string); ok && dir != "" {
		c.Download.RootDirectory = dir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if db, ok := flags["database"].(string); ok && db != "" {
		c.Database.Path = db
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(ConfigDir(), ".env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
