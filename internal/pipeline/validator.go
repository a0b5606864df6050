package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"optimus/internal/models"
)

// ValidationError reports why a model response was rejected. Rejection is a
// quality failure: the executor moves to the next model in the chain.
type ValidationError struct {
	Task   models.TaskType
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s: %s", e.Task, e.Reason)
}

// Validator checks that a raw model response parses as JSON and satisfies
// the structural contract of its task type. The same checks are applied to
// rule-based fallback output, so degraded results always pass validation.
type Validator struct {
	titleMax    int
	metaDescMax int
}

func NewValidator(titleMax, metaDescMax int) *Validator {
	if titleMax <= 0 {
		titleMax = 70
	}
	if metaDescMax <= 0 {
		metaDescMax = 160
	}
	return &Validator{titleMax: titleMax, metaDescMax: metaDescMax}
}

// Validate parses raw model output and checks the task's contract. Models
// frequently wrap JSON in markdown fences, so those are stripped first.
func (v *Validator) Validate(task models.TaskType, raw string) (*Result, error) {
	cleaned := stripCodeFence(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, &ValidationError{Task: task, Reason: "empty response"}
	}

	var res Result
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil {
		return nil, &ValidationError{Task: task, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := v.Check(task, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Check applies the per-task structural contract to an already parsed
// result. Whitespace-only values count as empty.
func (v *Validator) Check(task models.TaskType, res *Result) error {
	switch task {
	case models.TaskMetaOptimization:
		title := strings.TrimSpace(res.MetaTitle)
		desc := strings.TrimSpace(res.MetaDescription)
		if title == "" {
			return &ValidationError{Task: task, Reason: "missing meta_title"}
		}
		if len([]rune(title)) > v.titleMax {
			return &ValidationError{Task: task, Reason: fmt.Sprintf("meta_title exceeds %d characters", v.titleMax)}
		}
		if desc == "" {
			return &ValidationError{Task: task, Reason: "missing meta_description"}
		}
		if len([]rune(desc)) > v.metaDescMax {
			return &ValidationError{Task: task, Reason: fmt.Sprintf("meta_description exceeds %d characters", v.metaDescMax)}
		}

	case models.TaskContentRewriting:
		if strings.TrimSpace(res.OptimizedTitle) == "" {
			return &ValidationError{Task: task, Reason: "missing optimized_title"}
		}
		if strings.TrimSpace(res.OptimizedDescription) == "" {
			return &ValidationError{Task: task, Reason: "missing optimized_description"}
		}

	case models.TaskKeywordAnalysis:
		if len(nonEmpty(res.PrimaryKeywords)) == 0 {
			return &ValidationError{Task: task, Reason: "missing primary_keywords"}
		}

	case models.TaskTagOptimization:
		if len(nonEmpty(res.OptimizedTags)) == 0 {
			return &ValidationError{Task: task, Reason: "missing optimized_tags"}
		}

	case models.TaskCategoryNormalization:
		if strings.TrimSpace(res.Category) == "" {
			return &ValidationError{Task: task, Reason: "missing category"}
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			return &ValidationError{Task: task, Reason: "confidence out of range"}
		}

	default:
		return &ValidationError{Task: task, Reason: "unknown task type"}
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, and otherwise extracts the first top-level JSON object.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			// drop a language tag such as "json"
			first := strings.TrimSpace(s[:idx])
			if len(first) <= 10 && !strings.Contains(first, "{") {
				s = s[idx+1:]
			}
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}
	// models sometimes prepend prose before the JSON object
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
