package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise your render jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsOutput != "table" && statsOutput != "json" {
			return fmt.Errorf("unknown output format %q (use table or json)", statsOutput)
		}

		sdk, err := newSdk(cmd)
		if err != nil {
			return err
		}
		defer sdk.Close()

		st, err := sdk.Stats(cmd.Context())
		if err != nil {
			return err
		}

		if statsOutput == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		fmt.Printf("Animations created: %d (%d credits left)\n", st.AnimationsCreated, st.CreditsRemaining)
		fmt.Printf("Stored jobs: %d\n", st.TotalJobs)
		if st.TotalJobs == 0 {
			return nil
		}
		fmt.Printf("Render time: %s total, %s average\n",
			(time.Duration(st.RenderSeconds * float64(time.Second))).Round(time.Second),
			(time.Duration(st.AverageRenderSeconds * float64(time.Second))).Round(100*time.Millisecond))
		if st.LastJobAt != nil {
			fmt.Printf("Last job: %s\n", st.LastJobAt.Local().Format(time.DateTime))
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Breakdown", "Value", "Jobs")
		for _, k := range sortedKeys(st.JobsByStatus) {
			table.Append([]string{"status", k, strconv.Itoa(st.JobsByStatus[k])})
		}
		for _, k := range sortedKeys(st.JobsByFormat) {
			table.Append([]string{"format", k, strconv.Itoa(st.JobsByFormat[k])})
		}
		return table.Render()
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "Output format: table or json")
}
