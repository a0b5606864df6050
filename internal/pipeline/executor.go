package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"optimus/internal/inference"
	"optimus/internal/models"
	"optimus/internal/registry"
	"optimus/internal/store"
	"optimus/internal/taxonomy"
)

// ModelInvoker is the slice of the inference client the executor needs;
// tests substitute a scripted implementation.
type ModelInvoker interface {
	Generate(ctx context.Context, model, prompt string, opts inference.GenerateOptions) (string, error)
}

// Executor runs a single job through its task's model chain: try each model
// in availability order, validate the response, and on total model failure
// degrade to the rule-based fallback. A job only fails on infrastructure
// errors (product fetch, persistence); model and validation failures are
// quality failures and are absorbed by the chain and the fallback.
type Executor struct {
	invoker   ModelInvoker
	registry  *registry.Registry
	validator *Validator
	fallback  *RuleBasedFallback
	prompts   *PromptRenderer
	products  store.ProductStore
	changes   store.ChangeLogStore
	tax       *taxonomy.Taxonomy
	threshold float64
	timeout   time.Duration
}

type ExecutorParams struct {
	Invoker   ModelInvoker
	Registry  *registry.Registry
	Validator *Validator
	Fallback  *RuleBasedFallback
	Prompts   *PromptRenderer
	Products  store.ProductStore
	Changes   store.ChangeLogStore
	Taxonomy  *taxonomy.Taxonomy
	Threshold float64       // minimum fuzzy-match score to accept a taxonomy path
	Timeout   time.Duration // per model invocation
}

func NewExecutor(p ExecutorParams) *Executor {
	if p.Timeout <= 0 {
		p.Timeout = 120 * time.Second
	}
	return &Executor{
		invoker:   p.Invoker,
		registry:  p.Registry,
		validator: p.Validator,
		fallback:  p.Fallback,
		prompts:   p.Prompts,
		products:  p.Products,
		changes:   p.Changes,
		tax:       p.Taxonomy,
		threshold: p.Threshold,
		timeout:   p.Timeout,
	}
}

// Execute runs one job to completion. The availability snapshot is taken
// once per run by the caller and treated as read-only here. At most one
// invocation per chain entry is made; a timeout counts the same as a
// validation failure and moves on to the next model.
func (e *Executor) Execute(ctx context.Context, job Job, avail *inference.Availability) Outcome {
	out := Outcome{Job: job}

	product, err := e.products.GetProduct(ctx, job.ProductID)
	if err != nil {
		out.Err = fmt.Errorf("fetch product %d: %w", job.ProductID, err)
		return out
	}

	chain, err := e.registry.OrderedChain(job.TaskType, avail)
	if err != nil {
		out.Err = err
		return out
	}

	res, model := e.tryChain(ctx, job, product, chain, &out)
	if res == nil {
		res = e.fallback.Generate(job.TaskType, product)
		model = models.SourceRuleBased
		out.UsedFallback = true
		log.WithFields(log.Fields{
			"product_id": job.ProductID,
			"task":       job.TaskType,
			"attempts":   out.Attempts,
		}).Warn("all models failed, using rule-based fallback")
	}

	if job.TaskType == models.TaskCategoryNormalization {
		e.normalizeCategory(res, out.UsedFallback)
	}

	if err := e.persist(ctx, product, job.TaskType, res, model, out.UsedFallback); err != nil {
		out.Err = err
		return out
	}

	out.Success = true
	out.Model = model
	out.Result = res
	return out
}

// tryChain attempts each model in order, returning the first validated
// result, or nil when every model failed.
func (e *Executor) tryChain(ctx context.Context, job Job, product *models.Product, chain []string, out *Outcome) (*Result, string) {
	prompt, err := e.prompts.Render(job.TaskType, product)
	if err != nil {
		// Templates are checked at startup; a render failure here still
		// degrades to the fallback rather than failing the job.
		log.WithError(err).WithField("task", job.TaskType).Error("prompt render failed")
		return nil, ""
	}

	for _, model := range chain {
		settings := e.registry.Settings(model)
		out.Attempts++

		raw, err := e.invoker.Generate(ctx, model, prompt, inference.GenerateOptions{
			MaxTokens:   settings.MaxTokens,
			Temperature: settings.Temperature,
			Timeout:     e.timeout,
		})
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"product_id": job.ProductID,
				"task":       job.TaskType,
				"model":      model,
			}).Warn("model invocation failed, trying next in chain")
			continue
		}

		res, err := e.validator.Validate(job.TaskType, raw)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"product_id": job.ProductID,
				"task":       job.TaskType,
				"model":      model,
			}).Warn("model response rejected, trying next in chain")
			continue
		}
		return res, model
	}
	return nil, ""
}

// normalizeCategory maps the model's free-form category label onto the
// taxonomy. The fallback already matched against the taxonomy, so only the
// threshold clamp applies there. A score below the configured threshold is
// not trusted and the product lands in Uncategorized instead.
func (e *Executor) normalizeCategory(res *Result, alreadyMatched bool) {
	if !alreadyMatched {
		res.Category, res.Confidence = taxonomy.BestCategory(res.Category, e.tax)
	}
	if res.Confidence < e.threshold {
		res.Category = taxonomy.Uncategorized
	}
}

// persist applies the result to the product row and appends one change-log
// entry. Both writes must succeed for the job to count as processed.
func (e *Executor) persist(ctx context.Context, product *models.Product, task models.TaskType, res *Result, source string, usedFallback bool) error {
	fields := fieldsFor(task, res, source)
	if len(fields) > 0 {
		if err := e.products.UpdateProductFields(ctx, product.ID, fields); err != nil {
			return fmt.Errorf("update product %d: %w", product.ID, err)
		}
	}
	if err := e.changes.AppendChange(ctx, store.ChangeLogParams{
		ProductID:    product.ID,
		Field:        string(task),
		Old:          oldValueFor(task, product),
		New:          res.JSON(),
		Source:       source,
		UsedFallback: usedFallback,
	}); err != nil {
		return fmt.Errorf("append change log for product %d: %w", product.ID, err)
	}
	return nil
}

// fieldsFor maps a validated result onto product columns. Keyword analysis
// has no product column; its output lives in the change log only.
func fieldsFor(task models.TaskType, res *Result, source string) map[string]any {
	fields := map[string]any{"llm_model": source}
	switch task {
	case models.TaskMetaOptimization:
		fields["meta_title"] = res.MetaTitle
		fields["meta_description"] = res.MetaDescription
	case models.TaskContentRewriting:
		fields["normalized_title"] = res.OptimizedTitle
		fields["normalized_body_html"] = res.OptimizedDescription
	case models.TaskKeywordAnalysis:
		// change log only
	case models.TaskTagOptimization:
		fields["normalized_tags"] = models.JoinTags(res.OptimizedTags)
	case models.TaskCategoryNormalization:
		fields["normalized_category"] = res.Category
		fields["category_confidence"] = res.Confidence
	}
	return fields
}

// oldValueFor snapshots the pre-change values relevant to a task as JSON,
// so the change log can drive review and revert.
func oldValueFor(task models.TaskType, p *models.Product) string {
	old := map[string]any{}
	switch task {
	case models.TaskMetaOptimization:
		old["meta_title"] = deref(p.MetaTitle)
		old["meta_description"] = deref(p.MetaDescription)
	case models.TaskContentRewriting:
		old["title"] = p.Title
		old["body_html"] = p.BodyHTML
	case models.TaskKeywordAnalysis:
		old["tags"] = p.Tags
	case models.TaskTagOptimization:
		old["tags"] = p.Tags
	case models.TaskCategoryNormalization:
		old["category"] = p.Category
	}
	b, _ := json.Marshal(old)
	return string(b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
