package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var jobsOutput string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List your render jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jobsOutput != "table" && jobsOutput != "json" {
			return fmt.Errorf("unknown output format %q (use table or json)", jobsOutput)
		}

		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		jobs, err := sdk.ListJobs(cmd.Context())
		if err != nil {
			return err
		}

		if jobsOutput == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		}

		if len(jobs) == 0 {
			fmt.Println("No render jobs")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Job ID", "Status", "Created", "Result")
		for _, job := range jobs {
			result := job.VideoURL
			if job.ErrorMessage != "" {
				result = job.ErrorMessage
			}
			table.Append([]string{
				job.JobID,
				string(job.Status),
				job.CreatedAt.Local().Format(time.DateTime),
				result,
			})
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVarP(&jobsOutput, "output", "o", "table", "Output format: table or json")
}
