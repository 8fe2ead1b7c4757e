package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quatton/kino/pkg/kauth"
	"github.com/quatton/kino/pkg/ksdk"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication with the render service (login, logout, status)",
	Long: `Manage authentication against a running kino render service.

The access token is kept in the OS keyring, keyed by the service base URL,
and used by every other kinoctl command.

Examples:
  kinoctl auth register --email ada@example.com --username ada
  kinoctl auth login --email ada@example.com
  kinoctl auth status
  kinoctl auth logout`,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		if err := sdk.Logout(); err != nil {
			return fmt.Errorf("failed to clear credentials: %w", err)
		}
		fmt.Println("Logged out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a valid access token is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		cred, err := sdk.Session.Load()
		if errors.Is(err, ksdk.ErrNoCredential) {
			fmt.Printf("Not logged in to %s\n", sdk.Config.BaseURL)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Service: %s\n", sdk.Config.BaseURL)
		uc, err := kauth.FromToken(string(cred))
		if err != nil {
			fmt.Println("Token stored (claims unreadable)")
			return nil
		}
		fmt.Printf("Logged in as: %s <%s>\n", uc.Username, uc.Email)
		if uc.Tier != "" {
			fmt.Printf("Tier: %s\n", uc.Tier)
		}
		if uc.Exp > 0 {
			exp := time.Unix(uc.Exp, 0)
			state := "valid"
			if cred.Check(ksdk.DefaultTokenSkew) != nil {
				state = "expired"
			}
			fmt.Printf("Token expires: %s (%s)\n", exp.Format(time.RFC3339), state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

// readPassword prompts on a terminal and reads one line otherwise.
func readPassword(prompt string, fromStdin bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !fromStdin && term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
