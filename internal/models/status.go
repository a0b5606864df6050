package models

import (
	"fmt"
	"strings"
)

/*
Task type and run status constants for use throughout the codebase.
Centralizing these avoids magic strings and improves maintainability.
*/

// TaskType identifies one enrichment task the pipeline can run against a product.
type TaskType string

const (
	TaskMetaOptimization      TaskType = "meta_optimization"
	TaskContentRewriting      TaskType = "content_rewriting"
	TaskKeywordAnalysis       TaskType = "keyword_analysis"
	TaskTagOptimization       TaskType = "tag_optimization"
	TaskCategoryNormalization TaskType = "category_normalization"
)

// AllTaskTypes lists every known task type in a fixed order.
var AllTaskTypes = []TaskType{
	TaskMetaOptimization,
	TaskContentRewriting,
	TaskKeywordAnalysis,
	TaskTagOptimization,
	TaskCategoryNormalization,
}

// ParseTaskType converts a raw string into a TaskType, rejecting unknown values.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range AllTaskTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// Run status constants (pending -> running -> completed|failed|cancelled).
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// SourceRuleBased is recorded as the change source when the rule-based
// fallback produced the result instead of a model.
const SourceRuleBased = "rule_based"

// SplitTags splits a comma-separated tag string into trimmed, non-empty names.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTags is the inverse of SplitTags.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
