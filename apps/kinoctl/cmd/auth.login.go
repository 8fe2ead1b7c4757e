package cmd

import (
	"errors"
	"fmt"

	"github.com/quatton/kino/pkg/ksdk"
	"github.com/spf13/cobra"
)

var (
	loginEmail         string
	loginPasswordStdin bool
	registerUsername   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the render service",
	Long: `Log in with email and password. The password is prompted for unless
--password-stdin is given.

Examples:
	kinoctl auth login --email ada@example.com
	echo "$PASSWORD" | kinoctl auth login --email ada@example.com --password-stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ", loginPasswordStdin)
		if err != nil {
			return err
		}

		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		resp, err := sdk.Login(cmd.Context(), loginEmail, password)
		if err != nil {
			return err
		}
		printSession(resp)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Choose a password: ", loginPasswordStdin)
		if err != nil {
			return err
		}
		if len(password) < 8 {
			return errors.New("password must be at least 8 characters")
		}

		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		resp, err := sdk.Register(cmd.Context(), ksdk.RegisterInput{
			Email:    loginEmail,
			Username: registerUsername,
			Password: password,
		})
		if err != nil {
			return err
		}
		printSession(resp)
		return nil
	},
}

func printSession(resp *ksdk.AuthResponse) {
	fmt.Printf("Logged in as: %s <%s>\n", resp.User.Username, resp.User.Email)
	fmt.Printf("Credits remaining: %d\n", resp.User.CreditsRemaining)
	fmt.Println("Access token saved")
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "Account email")
		c.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
		c.MarkFlagRequired("email")
		authCmd.AddCommand(c)
	}
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "Display name")
	registerCmd.MarkFlagRequired("username")
}
