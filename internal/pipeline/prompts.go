package pipeline

import (
	"fmt"
	"strings"
	"text/template"

	"optimus/internal/config"
	"optimus/internal/models"
	"optimus/internal/util"
)

// promptData is what each task template renders against.
type promptData struct {
	Title       string
	Body        string // body HTML stripped to plain text
	Tags        []string
	Category    string
	TitleMax    int
	MetaDescMax int
}

// PromptRenderer owns one parsed template per task type. Templates come
// from the configured prompt directory when present; otherwise the built-in
// defaults below are used, so a bare install works without any prompt files.
type PromptRenderer struct {
	templates   map[models.TaskType]*template.Template
	titleMax    int
	metaDescMax int
}

func NewPromptRenderer(promptDir string, titleMax, metaDescMax int) (*PromptRenderer, error) {
	r := &PromptRenderer{
		templates:   make(map[models.TaskType]*template.Template, len(models.AllTaskTypes)),
		titleMax:    titleMax,
		metaDescMax: metaDescMax,
	}
	for _, task := range models.AllTaskTypes {
		text := defaultPrompts[task]
		if content, err := config.LoadPromptContent(promptDir, string(task)+".tmpl"); err == nil {
			text = content
		}
		tmpl, err := template.New(string(task)).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt template for %s: %w", task, err)
		}
		r.templates[task] = tmpl
	}
	return r, nil
}

// Render produces the prompt for one job's model invocation.
func (r *PromptRenderer) Render(task models.TaskType, product *models.Product) (string, error) {
	tmpl, ok := r.templates[task]
	if !ok {
		return "", fmt.Errorf("no prompt template for task %q", task)
	}
	data := promptData{
		Title:       product.Title,
		Body:        util.CleanHTML(product.BodyHTML),
		Tags:        product.TagList(),
		Category:    product.Category,
		TitleMax:    r.titleMax,
		MetaDescMax: r.metaDescMax,
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", task, err)
	}
	return sb.String(), nil
}

var defaultPrompts = map[models.TaskType]string{
	models.TaskMetaOptimization: `You are an SEO specialist for an e-commerce catalog.

Product title: {{.Title}}
Product description: {{.Body}}

Write an SEO meta title (at most {{.TitleMax}} characters) and meta
description (at most {{.MetaDescMax}} characters) for this product.

Respond with only a JSON object:
{"meta_title": "...", "meta_description": "..."}`,

	models.TaskContentRewriting: `You are a copywriter for an e-commerce catalog.

Product title: {{.Title}}
Product description: {{.Body}}

Rewrite the title and description to be clear, engaging, and keyword-rich
while staying factual.

Respond with only a JSON object:
{"optimized_title": "...", "optimized_description": "..."}`,

	models.TaskKeywordAnalysis: `You are an SEO keyword analyst.

Product title: {{.Title}}
Product description: {{.Body}}
Existing tags: {{range .Tags}}{{.}}, {{end}}

Identify the primary search keywords and long-tail keyword phrases buyers
would use to find this product.

Respond with only a JSON object:
{"primary_keywords": ["..."], "long_tail_keywords": ["..."]}`,

	models.TaskTagOptimization: `You are organizing an e-commerce catalog.

Product title: {{.Title}}
Product description: {{.Body}}
Existing tags: {{range .Tags}}{{.}}, {{end}}

Produce an improved set of 5-10 concise tags for this product. Keep tags
that are accurate, drop noise, and add obvious missing ones.

Respond with only a JSON object:
{"optimized_tags": ["..."]}`,

	models.TaskCategoryNormalization: `You are categorizing an e-commerce catalog.

Product title: {{.Title}}
Product description: {{.Body}}
Current category: {{.Category}}

Suggest the single best product category label for this product and your
confidence between 0 and 1.

Respond with only a JSON object:
{"category": "...", "confidence": 0.0}`,
}
