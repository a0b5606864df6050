package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"optimus/internal/inference"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show configured model chains and what is installed",
	Long: `Shows the per-task fallback chains from configuration and marks each
model as installed or missing on the inference host. Missing models are
skipped at run time; a chain with nothing installed still gets one
last-resort attempt on its final entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		defer appInstance.Close()

		avail := inference.Snapshot(ctx, appInstance.Inference)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Task", "Chain"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, task := range appInstance.Registry.Tasks() {
			chain, err := appInstance.Registry.ChainFor(task)
			if err != nil {
				continue
			}
			entries := make([]string, len(chain))
			for i, model := range chain {
				if avail.IsAvailable(model) {
					entries[i] = color.GreenString(model)
				} else {
					entries[i] = color.RedString(model + " (missing)")
				}
			}
			table.Append([]string{string(task), strings.Join(entries, " -> ")})
		}
		table.Render()

		installed, err := appInstance.Inference.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("list installed models: %w", err)
		}
		fmt.Printf("\n%d models installed on %s\n", len(installed), appInstance.Config.Ollama.BaseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
