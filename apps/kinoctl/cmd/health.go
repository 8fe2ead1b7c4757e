package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthWait     bool
	healthInterval time.Duration
	healthTimeout  time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the render service is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		ctx := cmd.Context()
		if !healthWait {
			h, err := sdk.Client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", sdk.Config.BaseURL, h.Status)
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		h, err := sdk.Client.WaitHealthy(ctx, healthInterval)
		if err != nil {
			return fmt.Errorf("service did not become healthy within %s: %w", healthTimeout, err)
		}
		fmt.Printf("%s: %s\n", sdk.Config.BaseURL, h.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthWait, "wait", false, "Keep polling until the service reports healthy")
	healthCmd.Flags().DurationVar(&healthInterval, "interval", 5*time.Second, "Polling interval with --wait")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 2*time.Minute, "Give up after this long with --wait")
}
