package models

import (
	"time"

	"github.com/google/uuid"
)

// Product mirrors the products table schema.
type Product struct {
	ID                 int64      `db:"id"`
	Title              string     `db:"title"`
	BodyHTML           string     `db:"body_html"`
	Tags               string     `db:"tags"` // comma-separated, as imported from the catalog feed
	Category           string     `db:"category"`
	NormalizedTitle    *string    `db:"normalized_title"`
	NormalizedBodyHTML *string    `db:"normalized_body_html"`
	NormalizedTags     *string    `db:"normalized_tags"`
	NormalizedCategory *string    `db:"normalized_category"`
	CategoryConfidence *float64   `db:"category_confidence"`
	MetaTitle          *string    `db:"meta_title"`
	MetaDescription    *string    `db:"meta_description"`
	LLMModel           *string    `db:"llm_model"`
	LastProcessedAt    *time.Time `db:"last_processed_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// TagList splits the raw comma-separated tags field into trimmed tag names.
func (p *Product) TagList() []string {
	return SplitTags(p.Tags)
}

// ChangeLogEntry records one field change made by the pipeline, so that
// operators can review (and if needed revert) what a model rewrote.
type ChangeLogEntry struct {
	ID           int64     `db:"id"`
	ProductID    int64     `db:"product_id"`
	Field        string    `db:"field"` // task type that produced the change
	Old          string    `db:"old"`
	New          string    `db:"new"`
	Source       string    `db:"source"` // model identifier or "rule_based"
	UsedFallback bool      `db:"used_fallback"`
	Reviewed     bool      `db:"reviewed"`
	CreatedAt    time.Time `db:"created_at"`
}

// PipelineRun mirrors the pipeline_runs table schema (the run ledger).
type PipelineRun struct {
	ID          int64      `db:"id"`
	RunID       uuid.UUID  `db:"run_id"`
	TaskTypes   string     `db:"task_types"` // comma-separated TaskType values
	Total       int        `db:"total_products"`
	Processed   int        `db:"processed_products"`
	Failed      int        `db:"failed_products"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Percentage reports run progress in [0,100].
func (r *PipelineRun) Percentage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Processed+r.Failed) / float64(r.Total) * 100
}
