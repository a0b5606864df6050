package pipeline

import (
	"strconv"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"

	"optimus/internal/models"
	"optimus/internal/taxonomy"
	"optimus/internal/util"
)

// RuleBasedFallback produces a deterministic degraded result when every
// model in a task's chain has failed. Its output always satisfies the
// validator contract for the same task type.
type RuleBasedFallback struct {
	titleMax    int
	metaDescMax int
	tokenizer   *sentences.DefaultSentenceTokenizer
	tax         *taxonomy.Taxonomy
}

func NewRuleBasedFallback(titleMax, metaDescMax int, tax *taxonomy.Taxonomy) *RuleBasedFallback {
	if titleMax <= 0 {
		titleMax = 70
	}
	if metaDescMax <= 0 {
		metaDescMax = 160
	}
	// The english package carries the trained punkt data; the base
	// constructor takes a storage and cannot tokenize without one.
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.WithError(err).Warn("sentence tokenizer unavailable, long descriptions will be hard-clipped")
	}
	return &RuleBasedFallback{
		titleMax:    titleMax,
		metaDescMax: metaDescMax,
		tokenizer:   tokenizer,
		tax:         tax,
	}
}

// Generate builds a rule-based result from the product's existing data.
// It performs no I/O and is deterministic for a given product.
func (f *RuleBasedFallback) Generate(task models.TaskType, product *models.Product) *Result {
	title := strings.TrimSpace(product.Title)
	if title == "" {
		title = "Product " + strconv.FormatInt(product.ID, 10)
	}
	body := util.CleanHTML(product.BodyHTML)

	switch task {
	case models.TaskMetaOptimization:
		desc := f.truncateAtSentence(body, f.metaDescMax)
		if desc == "" {
			desc = clip(title+" available now.", f.metaDescMax)
		}
		return &Result{
			MetaTitle:       clip(title, f.titleMax),
			MetaDescription: desc,
		}

	case models.TaskContentRewriting:
		desc := body
		if desc == "" {
			desc = title
		}
		return &Result{
			OptimizedTitle:       title,
			OptimizedDescription: desc,
		}

	case models.TaskKeywordAnalysis:
		keywords := keywordsFromText(title, product.TagList())
		return &Result{
			PrimaryKeywords:  keywords,
			LongTailKeywords: nil,
		}

	case models.TaskTagOptimization:
		tags := product.TagList()
		if len(tags) == 0 {
			tags = keywordsFromText(title, nil)
		}
		return &Result{OptimizedTags: tags}

	case models.TaskCategoryNormalization:
		matched, score := taxonomy.BestCategory(product.Category, f.tax)
		return &Result{Category: matched, Confidence: score}
	}
	return nil
}

// truncateAtSentence keeps whole sentences while the total stays within
// maxLen. A first sentence that alone exceeds the bound is clipped.
func (f *RuleBasedFallback) truncateAtSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len([]rune(text)) <= maxLen {
		return text
	}
	if f.tokenizer == nil {
		return clip(text, maxLen)
	}

	var sb strings.Builder
	for _, s := range f.tokenizer.Tokenize(text) {
		sentence := strings.TrimSpace(s.Text)
		if sentence == "" {
			continue
		}
		next := sentence
		if sb.Len() > 0 {
			next = sb.String() + " " + sentence
		}
		if len([]rune(next)) > maxLen {
			break
		}
		sb.Reset()
		sb.WriteString(next)
	}
	if sb.Len() == 0 {
		return clip(text, maxLen)
	}
	return sb.String()
}

// clip truncates to maxLen runes including the appended ellipsis, so the
// result never exceeds the bound.
func clip(text string, maxLen int) string {
	if len([]rune(text)) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return strings.TrimSpace(string([]rune(text)[:maxLen]))
	}
	return util.Shorten(text, maxLen-3)
}

// keywordsFromText derives keyword candidates from a title and tag list:
// lowercased words longer than three characters, deduplicated in order.
func keywordsFromText(title string, tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(word string) {
		word = strings.ToLower(strings.Trim(word, ".,!?:;\"'()"))
		if len(word) > 3 && !seen[word] {
			seen[word] = true
			out = append(out, word)
		}
	}
	for _, w := range strings.Fields(title) {
		add(w)
	}
	for _, t := range tags {
		add(t)
	}
	if len(out) == 0 {
		out = []string{"product"}
	}
	return out
}
