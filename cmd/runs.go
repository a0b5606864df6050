package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		defer appInstance.Close()

		runs, err := appInstance.Runs.ListRuns(ctx, runsLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No pipeline runs found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Run ID", "Tasks", "Status", "Processed", "Failed", "Total", "Started", "Completed"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, run := range runs {
			completed := "-"
			if run.CompletedAt != nil {
				completed = run.CompletedAt.Format("2006-01-02 15:04:05")
			}
			table.Append([]string{
				run.RunID.String(),
				run.TaskTypes,
				run.Status,
				strconv.Itoa(run.Processed),
				strconv.Itoa(run.Failed),
				strconv.Itoa(run.Total),
				run.CreatedAt.Format("2006-01-02 15:04:05"),
				completed,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Maximum number of runs to show")
}
