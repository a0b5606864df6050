package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"optimus/internal/app"
	"optimus/internal/models"
	"optimus/internal/pipeline"
	"optimus/internal/store"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(appInstance *app.App) *APIHandler {
	return &APIHandler{App: appInstance}
}

// startRunRequest is the POST /pipeline/run body.
type startRunRequest struct {
	TaskTypes   []string `json:"task_types" binding:"required"`
	ProductIDs  []int64  `json:"product_ids"`
	All         bool     `json:"all"`
	Concurrency int      `json:"concurrency"`
	DryRun      bool     `json:"dry_run"`
}

// StartRunHandler validates a run request and launches (or dry-runs) it.
func (h *APIHandler) StartRunHandler(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	taskTypes := make([]models.TaskType, 0, len(req.TaskTypes))
	for _, raw := range req.TaskTypes {
		task, err := models.ParseTaskType(raw)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		taskTypes = append(taskTypes, task)
	}

	runID, jobs, err := h.App.Manager.Start(c.Request.Context(), pipeline.StartOptions{
		TaskTypes:   taskTypes,
		ProductIDs:  req.ProductIDs,
		All:         req.All,
		Concurrency: req.Concurrency,
		DryRun:      req.DryRun,
	})
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	if req.DryRun {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"dry_run": true, "job_count": jobs}})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
		"run_id":    runID,
		"job_count": jobs,
		"status":    models.RunStatusPending,
	}})
}

// ListRunsHandler returns the most recent runs from the ledger.
func (h *APIHandler) ListRunsHandler(c *gin.Context) {
	limit := h.App.Config.Pipeline.RunHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.App.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		Internal(c, fmt.Sprintf("list runs: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// GetRunHandler returns one run, preferring live in-process counters over
// the ledger row when the run is still executing here.
func (h *APIHandler) GetRunHandler(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid run ID")
		return
	}

	if state, ok := h.App.Manager.Active(runID); ok {
		c.JSON(http.StatusOK, gin.H{"data": state.Progress()})
		return
	}

	run, err := h.App.Runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "run not found")
			return
		}
		Internal(c, fmt.Sprintf("get run: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// CancelRunHandler requests cooperative cancellation of an active run.
func (h *APIHandler) CancelRunHandler(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid run ID")
		return
	}

	if err := h.App.Manager.Cancel(runID); err != nil {
		if errors.Is(err, pipeline.ErrRunNotActive) {
			Conflict(c, "run is not active in this process")
			return
		}
		Internal(c, fmt.Sprintf("cancel run: %v", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"run_id": runID, "status": "cancelling"}})
}

// ListModelsHandler reports the configured chains against what the
// inference host actually has installed.
func (h *APIHandler) ListModelsHandler(c *gin.Context) {
	installed, err := h.App.Inference.ListModels(c.Request.Context())
	if err != nil {
		Internal(c, fmt.Sprintf("list models: %v", err))
		return
	}

	chains := make(map[string][]string)
	for _, task := range h.App.Registry.Tasks() {
		chain, err := h.App.Registry.ChainFor(task)
		if err != nil {
			continue
		}
		chains[string(task)] = chain
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"installed": installed, "chains": chains}})
}

// GetProductHandler returns one product row.
func (h *APIHandler) GetProductHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid product ID")
		return
	}

	product, err := h.App.Products.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "product not found")
			return
		}
		Internal(c, fmt.Sprintf("get product: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ListChangesHandler returns the change log for one product.
func (h *APIHandler) ListChangesHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid product ID")
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	changes, err := h.App.Changes.ListChanges(c.Request.Context(), id, limit)
	if err != nil {
		Internal(c, fmt.Sprintf("list changes: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": changes})
}

// MarkReviewedHandler marks a product's pending changes as reviewed.
func (h *APIHandler) MarkReviewedHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid product ID")
		return
	}

	if err := h.App.Changes.MarkReviewed(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "no changes for product")
			return
		}
		Internal(c, fmt.Sprintf("mark reviewed: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"product_id": id, "reviewed": true}})
}

// HealthHandler reports database connectivity.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	if err := h.App.Products.Ping(c.Request.Context()); err != nil {
		JSONError(c, http.StatusServiceUnavailable, "unavailable", "database ping failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_runs": h.App.Manager.ActiveCount()})
}
