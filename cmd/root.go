package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"optimus/internal/app"
	"optimus/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "optimus",
	Short: "Optimus batch SEO pipeline",
	Long: `Optimus enriches a product catalog with locally hosted language models:
meta tags, rewritten content, keywords, tag cleanup and category
normalization, with per-task model fallback chains.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		// The worker consumes from Redis and cannot run without it; serve
		// degrades to in-process execution when Redis is absent.
		if cmd.Name() == "worker" {
			if err := cfg.ValidateQueue(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
		}

		// The serve command hands runs to the queue so a worker process can
		// pick them up; everything else executes in-process.
		appInstance, err := app.NewApp(cmd.Context(), cfg, app.Options{
			UseQueue: cmd.Name() == "serve" && cfg.Redis.Address != "",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Custom context key type to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database and inference host connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Checking database connectivity...")
		if err := appInstance.Products.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		fmt.Println("Database connection successful.")

		fmt.Println("Checking inference host...")
		installed, err := appInstance.Inference.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("inference host unreachable: %w", err)
		}
		fmt.Printf("Inference host reachable, %d models installed.\n", len(installed))
		return nil
	},
}
