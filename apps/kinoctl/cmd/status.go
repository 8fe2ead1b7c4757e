package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/quatton/kino/pkg/ksdk"
	"github.com/spf13/cobra"
)

var statusFollow bool

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of a render job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		job, err := sdk.Status(ctx, args[0])
		if err != nil {
			return err
		}
		printJob(job)
		if !statusFollow {
			return nil
		}

		ticker := time.NewTicker(sdk.Config.PollInterval)
		defer ticker.Stop()
		for !job.Status.Terminal() {
			select {
			case <-ctx.Done():
				return errInterrupted
			case <-ticker.C:
			}
			next, err := sdk.Status(ctx, args[0])
			if err != nil {
				return err
			}
			if next.Status != job.Status {
				fmt.Printf("Status: %s\n", next.Status)
			}
			job = next
		}
		if job.Status == ksdk.StatusCompleted {
			fmt.Printf("Video: %s\n", job.VideoURL)
		} else if job.ErrorMessage != "" {
			fmt.Printf("Error: %s\n", job.ErrorMessage)
		}
		return nil
	},
}

func printJob(job *ksdk.RenderJob) {
	fmt.Printf("Job: %s\n", job.JobID)
	fmt.Printf("Status: %s\n", job.Status)
	fmt.Printf("Created: %s\n", job.CreatedAt.Local().Format(time.RFC3339))
	if job.EstimatedDuration != nil {
		fmt.Printf("Estimated: %.0fs\n", *job.EstimatedDuration)
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Local().Format(time.RFC3339))
	}
	if job.VideoURL != "" {
		fmt.Printf("Video: %s\n", job.VideoURL)
	}
	if job.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", job.ErrorMessage)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusFollow, "follow", false, "Poll until the job completes or fails")
}
