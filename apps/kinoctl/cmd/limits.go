package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show remaining credits and what a render may contain",
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		l, err := sdk.Limits(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Tier: %s\n", l.Tier)
		fmt.Printf("Credits: %d remaining, %d used\n", l.CreditsRemaining, l.CreditsUsed)
		fmt.Printf("Scenes: up to %gs and %d objects each\n", l.MaxSceneDuration, l.MaxObjectsPerScene)
		fmt.Printf("Formats: %s\n", strings.Join(l.OutputFormats, ", "))
		fmt.Printf("Qualities: %s\n", strings.Join(l.Qualities, ", "))
		fmt.Printf("Server render slots: %d\n", l.MaxConcurrentRenders)
		if l.CreditsRemaining == 0 {
			fmt.Println("No credits left: new renders will be rejected.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(limitsCmd)
}
