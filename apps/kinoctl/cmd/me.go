package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show information about the current authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		u, err := sdk.Me(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Logged in: %s <%s>\n", u.Username, u.Email)
		fmt.Printf("ID: %s\n", u.ID)
		fmt.Printf("Tier: %s\n", u.Tier)
		fmt.Printf("Credits: %d remaining, %d used\n", u.CreditsRemaining, u.CreditsUsed)
		fmt.Printf("Animations created: %d\n", u.AnimationsCreated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(meCmd)
}
