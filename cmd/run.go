package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"optimus/internal/models"
	"optimus/internal/pipeline"
)

var (
	runTasks       []string
	runProductIDs  []int64
	runAll         bool
	runConcurrency int
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run enrichment tasks against products",
	Long: `Runs the selected enrichment tasks against the given products (or the
whole catalog with --all) and blocks until the run finishes. Each product
gets one job per task; failed models fall through the configured chain
and finally to the rule-based fallback.`,
	Example: `  optimus run --task meta_optimization --product 42 --product 43
  optimus run --task meta_optimization --task tag_optimization --all
  optimus run --task category_normalization --all --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		defer appInstance.Close()

		taskTypes := make([]models.TaskType, 0, len(runTasks))
		for _, raw := range runTasks {
			task, err := models.ParseTaskType(raw)
			if err != nil {
				return err
			}
			taskTypes = append(taskTypes, task)
		}

		opts := pipeline.StartOptions{
			TaskTypes:   taskTypes,
			ProductIDs:  runProductIDs,
			All:         runAll,
			Concurrency: runConcurrency,
			DryRun:      runDryRun,
		}

		if runDryRun {
			_, count, err := appInstance.Manager.Start(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Dry run: %d jobs would be created.\n", count)
			return nil
		}

		runID, err := appInstance.Manager.RunSync(ctx, opts)
		if err != nil {
			return err
		}

		run, err := appInstance.Runs.GetRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("run finished but ledger lookup failed: %w", err)
		}

		status := color.GreenString(run.Status)
		if run.Failed > 0 {
			status = color.YellowString(run.Status)
		}
		fmt.Printf("Run %s: %s (%d processed, %d failed of %d)\n",
			run.RunID, status, run.Processed, run.Failed, run.Total)
		if run.Failed > 0 {
			return fmt.Errorf("%d jobs failed", run.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runTasks, "task", nil, "Task type to run (repeatable)")
	runCmd.Flags().Int64SliceVar(&runProductIDs, "product", nil, "Product ID to process (repeatable)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Process every product in the catalog")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Worker count override (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Report the job count without processing anything")
	runCmd.MarkFlagRequired("task")
}
