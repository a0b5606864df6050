package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimus/internal/models"
)

func TestValidateMetaOptimization(t *testing.T) {
	v := NewValidator(70, 160)

	res, err := v.Validate(models.TaskMetaOptimization,
		`{"meta_title": "Blue Running Shoes", "meta_description": "Lightweight blue running shoes for daily training."}`)
	require.NoError(t, err)
	assert.Equal(t, "Blue Running Shoes", res.MetaTitle)

	cases := []struct {
		name string
		raw  string
	}{
		{"missing title", `{"meta_description": "desc"}`},
		{"missing description", `{"meta_title": "title"}`},
		{"whitespace title", `{"meta_title": "   ", "meta_description": "desc"}`},
		{"title too long", `{"meta_title": "` + strings.Repeat("x", 71) + `", "meta_description": "desc"}`},
		{"description too long", `{"meta_title": "t", "meta_description": "` + strings.Repeat("x", 161) + `"}`},
		{"empty response", ``},
		{"not JSON", `sure, here is your meta title`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(models.TaskMetaOptimization, tc.raw)
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateStripsMarkdownFence(t *testing.T) {
	v := NewValidator(70, 160)

	raw := "```json\n{\"meta_title\": \"Fenced\", \"meta_description\": \"Inside a fence.\"}\n```"
	res, err := v.Validate(models.TaskMetaOptimization, raw)
	require.NoError(t, err)
	assert.Equal(t, "Fenced", res.MetaTitle)

	// prose before the JSON object
	raw = "Here is the result:\n{\"meta_title\": \"Prose\", \"meta_description\": \"After prose.\"}"
	res, err = v.Validate(models.TaskMetaOptimization, raw)
	require.NoError(t, err)
	assert.Equal(t, "Prose", res.MetaTitle)
}

func TestValidateKeywordAnalysis(t *testing.T) {
	v := NewValidator(70, 160)

	res, err := v.Validate(models.TaskKeywordAnalysis,
		`{"primary_keywords": ["running shoes", "trainers"], "long_tail_keywords": ["blue running shoes men"]}`)
	require.NoError(t, err)
	assert.Len(t, res.PrimaryKeywords, 2)

	_, err = v.Validate(models.TaskKeywordAnalysis, `{"primary_keywords": []}`)
	assert.Error(t, err)

	// whitespace-only entries count as empty
	_, err = v.Validate(models.TaskKeywordAnalysis, `{"primary_keywords": ["  ", ""]}`)
	assert.Error(t, err)
}

func TestValidateTagOptimization(t *testing.T) {
	v := NewValidator(70, 160)

	res, err := v.Validate(models.TaskTagOptimization, `{"optimized_tags": ["shoes", "running"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"shoes", "running"}, res.OptimizedTags)

	_, err = v.Validate(models.TaskTagOptimization, `{"optimized_tags": []}`)
	assert.Error(t, err)
}

func TestValidateContentRewriting(t *testing.T) {
	v := NewValidator(70, 160)

	_, err := v.Validate(models.TaskContentRewriting,
		`{"optimized_title": "New Title", "optimized_description": "New description."}`)
	require.NoError(t, err)

	_, err = v.Validate(models.TaskContentRewriting, `{"optimized_title": "New Title"}`)
	assert.Error(t, err)
}

func TestValidateCategoryNormalization(t *testing.T) {
	v := NewValidator(70, 160)

	res, err := v.Validate(models.TaskCategoryNormalization, `{"category": "Shoes", "confidence": 0.8}`)
	require.NoError(t, err)
	assert.Equal(t, "Shoes", res.Category)

	_, err = v.Validate(models.TaskCategoryNormalization, `{"category": "", "confidence": 0.8}`)
	assert.Error(t, err)

	_, err = v.Validate(models.TaskCategoryNormalization, `{"category": "Shoes", "confidence": 1.3}`)
	assert.Error(t, err)

	_, err = v.Validate(models.TaskCategoryNormalization, `{"category": "Shoes", "confidence": -0.1}`)
	assert.Error(t, err)
}

func TestValidateUnknownTask(t *testing.T) {
	v := NewValidator(70, 160)
	_, err := v.Validate(models.TaskType("mystery"), `{}`)
	assert.Error(t, err)
}
