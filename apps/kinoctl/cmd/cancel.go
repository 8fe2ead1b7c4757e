package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or processing render",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		job, err := sdk.CancelJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Cancelled %s (%s)\n", job.JobID, job.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
