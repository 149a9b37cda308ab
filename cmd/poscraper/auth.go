package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"poscraper/pkg/auth"
	"poscraper/pkg/ui"
)

var loginOrigin string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored site logins",
	Long: `Manage the username and password used to log into the web application.

Logins are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation (POSCRAPER_PASSPHRASE or a
    generated passphrase next to the config)
  - Environment variables POSCRAPER_USERNAME / POSCRAPER_PASSWORD (read only)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a login securely",
	Example: `  # Interactive login
  poscraper auth login

  # Login for a specific user and site
  poscraper auth login jdoe --origin https://maa-m.onlinepo.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove a stored login",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored logins",
	Long:  `List stored logins with passwords masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().StringVar(&loginOrigin, "origin", "", "site the login belongs to")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	} else {
		fmt.Print("Username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		return errors.New("username is required")
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	account := &auth.Account{
		Username: username,
		Password: password,
		Origin:   loginOrigin,
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Login stored for " + username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Login removed for " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintWarning("No stored logins; run 'poscraper auth login'")
		return nil
	}

	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		line := fmt.Sprintf("%s  password=%s", masked.Username, masked.Password)
		if masked.Origin != "" {
			line += "  origin=" + masked.Origin
		}
		if !masked.LastModified.IsZero() {
			line += "  stored=" + masked.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Println(line)
	}
	return nil
}

// readPassword reads without echo on a terminal, otherwise one line of input
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
