package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"optimus/internal/app"
	"optimus/internal/store"
	"optimus/internal/tasks"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background pipeline worker",
	Long: `Starts the worker process that consumes queued pipeline runs from Redis
and executes them. Run this alongside 'serve' so API-submitted runs are
processed out of the request path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		return runWorker(appInstance)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One run occupies one asynq slot; the run's own worker pool
			// provides the per-job concurrency.
			Concurrency: 1,
			Queues:      map[string]int{"pipeline": 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithError(err).WithField("type", task.Type()).Error("queued run failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePipelineRun, func(ctx context.Context, t *asynq.Task) error {
		var req store.RunRequest
		if err := json.Unmarshal(t.Payload(), &req); err != nil {
			return fmt.Errorf("decode run request: %w", err)
		}
		return appInstance.Manager.ExecuteRequest(ctx, req)
	})

	log.Infof("Starting pipeline worker (redis: %s)", cfg.Redis.Address)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received, stopping worker...")
	srv.Stop()
	srv.Shutdown()
	log.Info("Worker shutdown complete.")
	return nil
}
