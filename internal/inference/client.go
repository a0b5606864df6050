package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// chatCompleter is the minimal slice of the OpenAI client the inference
// client needs; tests substitute their own implementation.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// GenerateOptions carries per-invocation generation knobs.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client talks to a local inference host (Ollama) through its
// OpenAI-compatible endpoint.
type Client struct {
	api            chatCompleter
	defaultTimeout time.Duration
}

// NewClient builds a Client against baseURL (e.g. http://localhost:11434/v1).
// Ollama ignores the API key but the transport requires a non-empty one.
func NewClient(baseURL, apiKey string, defaultTimeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("inference host base URL cannot be empty")
	}
	if apiKey == "" {
		apiKey = "ollama"
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 120 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		defaultTimeout: defaultTimeout,
	}, nil
}

// NewClientWithAPI wires an existing API implementation; used by tests.
func NewClientWithAPI(api chatCompleter, defaultTimeout time.Duration) *Client {
	if defaultTimeout <= 0 {
		defaultTimeout = 120 * time.Second
	}
	return &Client{api: api, defaultTimeout: defaultTimeout}
}

// Generate invokes one model with a prompt under a bounded timeout and
// returns the raw completion text. Timeouts and transport errors come back
// as plain errors; the caller decides how to recover.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("model %s invocation failed: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", model)
	}

	log.WithFields(log.Fields{
		"model":    model,
		"duration": time.Since(started).Round(time.Millisecond).String(),
	}).Debug("Model invocation complete")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ListModels returns the identifiers of every model installed on the host.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models from inference host: %w", err)
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}
