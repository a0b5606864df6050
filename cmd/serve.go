package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"optimus/internal/apihandlers"
)

var (
	serveAddr string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and progress websocket",
	Long: `Starts an HTTP server exposing the pipeline API (start, status, cancel),
product and change-log lookups, and a websocket streaming live run
progress to dashboards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		router := gin.Default()
		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			pipelineGroup := v1.Group("/pipeline")
			{
				pipelineGroup.POST("/run", apiHandler.StartRunHandler)
				pipelineGroup.GET("/runs", apiHandler.ListRunsHandler)
				pipelineGroup.GET("/runs/:id", apiHandler.GetRunHandler)
				pipelineGroup.POST("/runs/:id/cancel", apiHandler.CancelRunHandler)
			}

			v1.GET("/models", apiHandler.ListModelsHandler)

			productGroup := v1.Group("/products")
			{
				productGroup.GET("/:id", apiHandler.GetProductHandler)
				productGroup.GET("/:id/changes", apiHandler.ListChangesHandler)
				productGroup.POST("/:id/review", apiHandler.MarkReviewedHandler)
			}
		}

		router.GET("/ws/progress", apiHandler.ProgressSocketHandler)
		router.GET("/health", apiHandler.HealthHandler)

		listenAddr := fmt.Sprintf("%s:%s", serveAddr, servePort)
		log.Infof("Starting API server on http://%s", listenAddr)
		if err := router.Run(listenAddr); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost", "Address to listen on ('0.0.0.0' for all interfaces)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
}
