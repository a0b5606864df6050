package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"optimus/internal/models"
)

// --- Job Client ---

// RunRequest is the payload enqueued for the pipeline worker. ProductIDs
// empty plus All=true means "every product in the catalog".
type RunRequest struct {
	RunID       uuid.UUID         `json:"run_id"`
	TaskTypes   []models.TaskType `json:"task_types"`
	ProductIDs  []int64           `json:"product_ids,omitempty"`
	All         bool              `json:"all,omitempty"`
	Concurrency int               `json:"concurrency,omitempty"`
}

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueuePipelineRun(ctx context.Context, req RunRequest) error
	Close() error
}

// --- Product Store ---

type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error)
	ListProductIDs(ctx context.Context) ([]int64, error)
	UpdateProductFields(ctx context.Context, id int64, fields map[string]any) error

	Ping(ctx context.Context) error
}

// --- Change Log Store ---

// ChangeLogParams holds parameters for appending a change-log entry.
type ChangeLogParams struct {
	ProductID    int64
	Field        string
	Old          string
	New          string
	Source       string
	UsedFallback bool
}

type ChangeLogStore interface {
	AppendChange(ctx context.Context, params ChangeLogParams) error
	ListChanges(ctx context.Context, productID int64, limit int) ([]*models.ChangeLogEntry, error)
	MarkReviewed(ctx context.Context, productID int64) error
}

// --- Run Store (the run ledger) ---

type RunStore interface {
	CreateRun(ctx context.Context, runID uuid.UUID, taskTypes []models.TaskType, total int) (*models.PipelineRun, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*models.PipelineRun, error)
	UpdateRunCounters(ctx context.Context, runID uuid.UUID, processed, failed int, status string) error
	UpdateRunTotal(ctx context.Context, runID uuid.UUID, total int) error
	CompleteRun(ctx context.Context, runID uuid.UUID, processed, failed int, status string) error
	ListRuns(ctx context.Context, limit int) ([]*models.PipelineRun, error)
}
