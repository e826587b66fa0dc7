package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/biscuitvixen/e6-dl/pkg/auth"
	"github.com/biscuitvixen/e6-dl/pkg/config"
	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

var logoutAll bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage e621 API credentials",
	Long: `Manage stored e621 API credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables E6DL_USERNAME and E6DL_API_KEY

Most pools download anonymously; an API key only matters for posts hidden
from anonymous users.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store an e621 API key",
	Long: `Store an e621 username and API key in the system keychain or an
encrypted file. The key is read without echoing it to the terminal.`,
	Example: `  # Interactive login
  e6dl auth login

  # Login with username
  e6dl auth login my_name`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored e621 credentials. Without a username the only stored
account is removed; use --all to remove every account.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts",
	Long:  `List stored e621 accounts with masked API keys and show which one is used.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(config.ConfigDir())
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	prompter := ui.NewPrompter(os.Stdin, os.Stdout, false)
	auth.ShowAPIKeyGuide(os.Stdout)

	username := ""
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		username, err = prompter.ReadLine("e621 username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if username == "" {
		return errors.New("username is required")
	}

	if _, err := manager.Retrieve(username); err == nil {
		ok, err := prompter.Confirm(fmt.Sprintf("Credentials for %s already exist. Replace them?", username))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Keeping the stored credentials.")
			return nil
		}
	}

	apiKey, err := readSecret(prompter, "API key: ")
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	if err := manager.Store(&auth.Account{Username: username, APIKey: apiKey}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Credentials stored for " + username)
	return nil
}

// readSecret reads without echo when stdin is a terminal
func readSecret(prompter *ui.Prompter, prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return prompter.ReadLine(prompt)
	}

	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(config.ConfigDir())
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		ui.PrintSuccess("All stored credentials removed")
		return nil
	}

	username := ""
	if len(args) > 0 {
		username = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		switch len(accounts) {
		case 0:
			fmt.Println("No stored credentials.")
			return nil
		case 1:
			username = accounts[0].Username
		default:
			printAccounts(os.Stdout, accounts, "")
			return errors.New("several accounts are stored; name one or use --all")
		}
	}

	if err := manager.Delete(username); err != nil {
		return fmt.Errorf("failed to remove credentials for %s: %w", username, err)
	}
	ui.PrintSuccess("Credentials removed for " + username)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(config.ConfigDir())
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No stored credentials; downloads run anonymously.")
		fmt.Println("\nTo store an API key, run:")
		fmt.Println("  e6dl auth login")
		return nil
	}

	active := ""
	if account, err := manager.RetrieveDefault(); err == nil {
		active = account.Username
	}
	printAccounts(os.Stdout, accounts, active)
	return nil
}

// printAccounts lists accounts with masked keys, marking active
func printAccounts(w io.Writer, accounts []*auth.Account, active string) {
	ui.PrintHighlight("Stored accounts")
	for _, account := range accounts {
		safe := auth.SanitizeAccount(account)
		marker := " "
		if account.Username == active {
			marker = ui.Green("*")
		}
		updated := "unknown"
		if !account.LastModified.IsZero() {
			updated = account.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s %s  key %s  updated %s\n", marker, ui.Cyan(safe.Username), safe.APIKey, ui.Dim(updated))
	}
}
