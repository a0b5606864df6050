package pipeline

import (
	"encoding/json"

	"optimus/internal/models"
)

// Job is one (product, task type) unit of work. Jobs are created when a run
// is requested and never mutated afterwards.
type Job struct {
	ProductID int64           `json:"product_id"`
	TaskType  models.TaskType `json:"task_type"`
}

// Result is the parsed, validated payload of one task execution. It is a
// superset across task types; the validator enforces which fields a given
// task must populate.
type Result struct {
	// meta_optimization
	MetaTitle       string `json:"meta_title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`

	// content_rewriting
	OptimizedTitle       string `json:"optimized_title,omitempty"`
	OptimizedDescription string `json:"optimized_description,omitempty"`

	// keyword_analysis
	PrimaryKeywords  []string `json:"primary_keywords,omitempty"`
	LongTailKeywords []string `json:"long_tail_keywords,omitempty"`

	// tag_optimization
	OptimizedTags []string `json:"optimized_tags,omitempty"`

	// category_normalization
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// JSON renders the result for change-log persistence. Marshalling a plain
// struct of strings and slices cannot fail.
func (r *Result) JSON() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// Outcome is what the task executor reports for each job. Success=false
// means an infrastructure failure; quality failures degrade to the
// rule-based fallback and still count as success.
type Outcome struct {
	Job          Job
	Model        string
	Success      bool
	Result       *Result
	Err          error
	UsedFallback bool
	Attempts     int // model invocations performed
}
