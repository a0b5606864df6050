package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimus/internal/models"
	"optimus/internal/taxonomy"
)

func testTaxonomy() *taxonomy.Taxonomy {
	return taxonomy.New([]string{
		"Apparel & Accessories",
		"Apparel & Accessories > Shoes",
		"Apparel & Accessories > Shoes > Sneakers",
		"Home & Garden",
		"Home & Garden > Kitchen & Dining",
	})
}

func testProduct() *models.Product {
	return &models.Product{
		ID:       42,
		Title:    "Classic Blue Canvas Sneaker",
		BodyHTML: "<p>A timeless canvas sneaker with a rubber sole. Comfortable for all-day wear. Machine washable and built to last through every season.</p>",
		Tags:     "sneaker, canvas, blue",
		Category: "sneaker",
	}
}

// Every fallback result must satisfy the validator contract for its task:
// degraded output is still structurally valid output.
func TestFallbackPassesValidation(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())
	v := NewValidator(70, 160)
	product := testProduct()

	for _, task := range models.AllTaskTypes {
		t.Run(string(task), func(t *testing.T) {
			res := f.Generate(task, product)
			require.NotNil(t, res)
			assert.NoError(t, v.Check(task, res))
		})
	}
}

// The fallback must hold even for a bare product with no usable fields.
func TestFallbackEmptyProductPassesValidation(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())
	v := NewValidator(70, 160)
	empty := &models.Product{ID: 7}

	for _, task := range models.AllTaskTypes {
		t.Run(string(task), func(t *testing.T) {
			res := f.Generate(task, empty)
			require.NotNil(t, res)
			assert.NoError(t, v.Check(task, res))
		})
	}
}

func TestFallbackDeterministic(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())
	product := testProduct()

	for _, task := range models.AllTaskTypes {
		first := f.Generate(task, product)
		second := f.Generate(task, product)
		assert.Equal(t, first, second, "task %s", task)
	}
}

func TestFallbackMetaRespectsBounds(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())
	product := testProduct()
	product.Title = strings.Repeat("Very Long Product Name ", 10)
	product.BodyHTML = "<p>" + strings.Repeat("This sentence pads the description well past the limit. ", 20) + "</p>"

	res := f.Generate(models.TaskMetaOptimization, product)
	assert.LessOrEqual(t, len([]rune(res.MetaTitle)), 70)
	assert.LessOrEqual(t, len([]rune(res.MetaDescription)), 160)
}

// The truncated description should end on a sentence boundary when the
// first sentence fits.
func TestFallbackMetaDescriptionSentenceBoundary(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())
	product := testProduct()

	res := f.Generate(models.TaskMetaOptimization, product)
	assert.True(t, strings.HasSuffix(res.MetaDescription, "."),
		"expected sentence boundary, got %q", res.MetaDescription)
}

// A body well past the description limit exercises the sentence
// tokenizer; the result must keep whole sentences and stay non-empty.
func TestFallbackTruncatesLongBodyAtSentence(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())
	product := testProduct()
	product.BodyHTML = "<p>" + strings.Repeat("Each of these sentences is a complete thought ending in a period. ", 8) + "</p>"

	res := f.Generate(models.TaskMetaOptimization, product)
	require.NotEmpty(t, res.MetaDescription)
	assert.LessOrEqual(t, len([]rune(res.MetaDescription)), 160)
	assert.True(t, strings.HasSuffix(res.MetaDescription, "period."),
		"expected truncation on a sentence boundary, got %q", res.MetaDescription)
}

func TestFallbackCategoryUsesTaxonomy(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())

	res := f.Generate(models.TaskCategoryNormalization, testProduct())
	assert.Equal(t, "Apparel & Accessories > Shoes > Sneakers", res.Category)
	assert.Greater(t, res.Confidence, 0.5)
}

func TestFallbackTagsEchoExisting(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())

	res := f.Generate(models.TaskTagOptimization, testProduct())
	assert.Equal(t, []string{"sneaker", "canvas", "blue"}, res.OptimizedTags)
}

func TestFallbackKeywordsFromTitle(t *testing.T) {
	f := NewRuleBasedFallback(70, 160, testTaxonomy())

	res := f.Generate(models.TaskKeywordAnalysis, testProduct())
	assert.Contains(t, res.PrimaryKeywords, "classic")
	assert.Contains(t, res.PrimaryKeywords, "sneaker")
	// "blue" has four letters and qualifies; short words are dropped
	assert.NotContains(t, res.PrimaryKeywords, "a")
}
