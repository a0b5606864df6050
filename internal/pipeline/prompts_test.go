package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimus/internal/models"
)

func TestPromptRendererDefaults(t *testing.T) {
	r, err := NewPromptRenderer(t.TempDir(), 70, 160)
	require.NoError(t, err)

	product := testProduct()
	for _, task := range models.AllTaskTypes {
		prompt, err := r.Render(task, product)
		require.NoError(t, err, "task %s", task)
		assert.Contains(t, prompt, product.Title)
		assert.Contains(t, prompt, "JSON")
	}
}

func TestPromptRendererStripsBodyHTML(t *testing.T) {
	r, err := NewPromptRenderer(t.TempDir(), 70, 160)
	require.NoError(t, err)

	prompt, err := r.Render(models.TaskMetaOptimization, testProduct())
	require.NoError(t, err)
	assert.NotContains(t, prompt, "<p>")
	assert.Contains(t, prompt, "timeless canvas sneaker")
}

func TestPromptRendererOverrideFromDir(t *testing.T) {
	dir := t.TempDir()
	custom := "Summarize {{.Title}} in {{.TitleMax}} characters."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta_optimization.tmpl"), []byte(custom), 0o644))

	r, err := NewPromptRenderer(dir, 70, 160)
	require.NoError(t, err)

	prompt, err := r.Render(models.TaskMetaOptimization, testProduct())
	require.NoError(t, err)
	assert.Equal(t, "Summarize Classic Blue Canvas Sneaker in 70 characters.", prompt)
}

func TestPromptRendererUnknownTask(t *testing.T) {
	r, err := NewPromptRenderer(t.TempDir(), 70, 160)
	require.NoError(t, err)

	_, err = r.Render(models.TaskType("mystery"), testProduct())
	assert.Error(t, err)
}
