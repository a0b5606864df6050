package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"optimus/internal/util"
)

var productChangesLimit int

var productCmd = &cobra.Command{
	Use:   "product <id>",
	Short: "Show a product and its enrichment state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		defer appInstance.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product ID %q", args[0])
		}

		product, err := appInstance.Products.GetProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}

		fmt.Printf("Product %d: %s\n", product.ID, color.CyanString(product.Title))
		fmt.Printf("Category: %s\n", orDash(product.Category))
		if product.NormalizedCategory != nil {
			confidence := ""
			if product.CategoryConfidence != nil {
				confidence = fmt.Sprintf(" (%.2f)", *product.CategoryConfidence)
			}
			fmt.Printf("Normalized category: %s%s\n", *product.NormalizedCategory, confidence)
		}
		fmt.Printf("Tags: %s\n", orDash(product.Tags))
		if product.NormalizedTags != nil {
			fmt.Printf("Normalized tags: %s\n", *product.NormalizedTags)
		}
		if product.MetaTitle != nil {
			fmt.Printf("Meta title: %s\n", *product.MetaTitle)
		}
		if product.MetaDescription != nil {
			fmt.Printf("Meta description: %s\n", *product.MetaDescription)
		}
		if product.LLMModel != nil {
			fmt.Printf("Last model: %s\n", *product.LLMModel)
		}
		if product.LastProcessedAt != nil {
			fmt.Printf("Last processed: %s\n", product.LastProcessedAt.Format("2006-01-02 15:04:05"))
		}

		changes, err := appInstance.Changes.ListChanges(ctx, id, productChangesLimit)
		if err != nil {
			return fmt.Errorf("list changes: %w", err)
		}
		if len(changes) == 0 {
			fmt.Println("\nNo recorded changes.")
			return nil
		}

		fmt.Println("\nChange log:")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"When", "Task", "Source", "Fallback", "Reviewed", "New Value"})
		table.SetBorder(true)
		for _, change := range changes {
			fallback := ""
			if change.UsedFallback {
				fallback = color.YellowString("yes")
			}
			reviewed := ""
			if change.Reviewed {
				reviewed = "yes"
			}
			table.Append([]string{
				change.CreatedAt.Format("2006-01-02 15:04"),
				change.Field,
				change.Source,
				fallback,
				reviewed,
				util.Shorten(change.New, 60),
			})
		}
		table.Render()
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.Flags().IntVar(&productChangesLimit, "changes", 10, "Number of change-log entries to show")
}
