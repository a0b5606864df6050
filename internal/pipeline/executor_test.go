package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimus/internal/inference"
	"optimus/internal/models"
	"optimus/internal/registry"
	"optimus/internal/taxonomy"
)

const (
	modelPrimary  = "llama3.1:8b"
	modelSecond   = "mistral:7b"
	modelLast     = "gemma2:2b"
	validMetaJSON = `{"meta_title": "Classic Blue Canvas Sneaker", "meta_description": "A timeless canvas sneaker with a rubber sole."}`
)

func testRegistry() *registry.Registry {
	chains := map[models.TaskType][]string{}
	for _, task := range models.AllTaskTypes {
		chains[task] = []string{modelPrimary, modelSecond, modelLast}
	}
	return registry.New(chains)
}

func allAvailable() *inference.Availability {
	return inference.NewAvailability([]string{modelPrimary, modelSecond, modelLast})
}

func newTestExecutor(t *testing.T, invoker ModelInvoker, products *mockProducts, changes *mockChanges) *Executor {
	t.Helper()
	prompts, err := NewPromptRenderer("", 70, 160)
	require.NoError(t, err)
	tax := testTaxonomy()
	return NewExecutor(ExecutorParams{
		Invoker:   invoker,
		Registry:  testRegistry(),
		Validator: NewValidator(70, 160),
		Fallback:  NewRuleBasedFallback(70, 160, tax),
		Prompts:   prompts,
		Products:  products,
		Changes:   changes,
		Taxonomy:  tax,
		Threshold: 0.5,
		Timeout:   time.Second,
	})
}

func TestExecuteFirstModelSucceeds(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, validMetaJSON)
	products := newMockProducts(testProduct())
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, allAvailable())

	require.True(t, out.Success)
	assert.Equal(t, modelPrimary, out.Model)
	assert.Equal(t, 1, out.Attempts)
	assert.False(t, out.UsedFallback)

	fields := products.updatedFields(42)
	require.NotNil(t, fields)
	assert.Equal(t, "Classic Blue Canvas Sneaker", fields["meta_title"])
	assert.Equal(t, modelPrimary, fields["llm_model"])

	entries := changes.all()
	require.Len(t, entries, 1)
	assert.Equal(t, string(models.TaskMetaOptimization), entries[0].Field)
	assert.Equal(t, modelPrimary, entries[0].Source)
	assert.False(t, entries[0].UsedFallback)
}

func TestExecuteFallsThroughChain(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, "this is not JSON")
	invoker.fail(modelSecond, errors.New("connection refused"))
	invoker.respond(modelLast, validMetaJSON)
	products := newMockProducts(testProduct())
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, allAvailable())

	require.True(t, out.Success)
	assert.Equal(t, modelLast, out.Model)
	assert.Equal(t, 3, out.Attempts)
	assert.False(t, out.UsedFallback)
}

// A timeout is handled exactly like a validation failure: move on to the
// next model, never retry the same one.
func TestExecuteTimeoutMovesToNextModel(t *testing.T) {
	invoker := newMockInvoker()
	invoker.fail(modelPrimary, context.DeadlineExceeded)
	invoker.respond(modelSecond, validMetaJSON)
	invoker.respond(modelLast, validMetaJSON)
	products := newMockProducts(testProduct())
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, allAvailable())

	require.True(t, out.Success)
	assert.Equal(t, modelSecond, out.Model)
	assert.Equal(t, 2, out.Attempts)
}

func TestExecuteAllModelsFailUsesFallback(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, "garbage")
	invoker.respond(modelSecond, `{"meta_title": ""}`)
	invoker.fail(modelLast, errors.New("model crashed"))
	products := newMockProducts(testProduct())
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, allAvailable())

	// degraded, but still a processed job
	require.True(t, out.Success)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, models.SourceRuleBased, out.Model)
	assert.Equal(t, 3, out.Attempts)

	entries := changes.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.SourceRuleBased, entries[0].Source)
	assert.True(t, entries[0].UsedFallback)
	assert.Equal(t, models.SourceRuleBased, products.updatedFields(42)["llm_model"])
}

// At most one invocation per chain entry, even when everything fails.
func TestExecuteInvocationBudget(t *testing.T) {
	invoker := newMockInvoker()
	invoker.fail(modelPrimary, errors.New("down"))
	invoker.fail(modelSecond, errors.New("down"))
	invoker.fail(modelLast, errors.New("down"))
	products := newMockProducts(testProduct())
	e := newTestExecutor(t, invoker, products, &mockChanges{})

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, allAvailable())

	require.True(t, out.Success)
	assert.Equal(t, 3, invoker.callCount())
}

// When no chain model is installed, only the final entry gets a
// last-resort attempt.
func TestExecuteNoneInstalledLastResortOnly(t *testing.T) {
	invoker := newMockInvoker()
	invoker.fail(modelLast, errors.New("not installed"))
	products := newMockProducts(testProduct())
	e := newTestExecutor(t, invoker, products, &mockChanges{})

	none := inference.NewAvailability(nil)
	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, none)

	require.True(t, out.Success)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, 1, invoker.callCount())
	assert.Equal(t, []string{modelLast}, invoker.calls)
}

func TestExecuteProductFetchFails(t *testing.T) {
	invoker := newMockInvoker()
	products := newMockProducts() // no products
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 99, TaskType: models.TaskMetaOptimization}, allAvailable())

	assert.False(t, out.Success)
	assert.Error(t, out.Err)
	assert.Zero(t, invoker.callCount())
	assert.Empty(t, changes.all())
}

func TestExecutePersistenceFailure(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, validMetaJSON)
	products := newMockProducts(testProduct())
	products.updErr[42] = errors.New("connection lost")
	e := newTestExecutor(t, invoker, products, &mockChanges{})

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskMetaOptimization}, allAvailable())

	assert.False(t, out.Success)
	assert.Error(t, out.Err)
}

func TestExecuteCategoryNormalization(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, `{"category": "sneaker", "confidence": 0.9}`)
	products := newMockProducts(testProduct())
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskCategoryNormalization}, allAvailable())

	require.True(t, out.Success)
	// the model's label is mapped onto the taxonomy, not stored verbatim
	assert.Equal(t, "Apparel & Accessories > Shoes > Sneakers", out.Result.Category)
	assert.Greater(t, out.Result.Confidence, 0.5)

	fields := products.updatedFields(42)
	assert.Equal(t, "Apparel & Accessories > Shoes > Sneakers", fields["normalized_category"])
}

func TestExecuteCategoryBelowThreshold(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, `{"category": "zzqx", "confidence": 0.9}`)
	products := newMockProducts(testProduct())
	e := newTestExecutor(t, invoker, products, &mockChanges{})

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskCategoryNormalization}, allAvailable())

	require.True(t, out.Success)
	assert.Equal(t, taxonomy.Uncategorized, out.Result.Category)
}

func TestExecuteKeywordAnalysisChangeLogOnly(t *testing.T) {
	invoker := newMockInvoker()
	invoker.respond(modelPrimary, `{"primary_keywords": ["canvas sneaker"]}`)
	products := newMockProducts(testProduct())
	changes := &mockChanges{}
	e := newTestExecutor(t, invoker, products, changes)

	out := e.Execute(context.Background(), Job{ProductID: 42, TaskType: models.TaskKeywordAnalysis}, allAvailable())

	require.True(t, out.Success)
	require.Len(t, changes.all(), 1)
	// keyword results live in the change log; only llm_model touches the row
	fields := products.updatedFields(42)
	assert.Equal(t, map[string]any{"llm_model": modelPrimary}, fields)
}
