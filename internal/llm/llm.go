// Package llm implements the language-model collaborators of the product
// pipeline: product identification, per-source summarization, structured
// synthesis and representative image selection.
//
// Anthropic-backed collaborators go through pkg/anthropic. The OpenAI
// synthesizer and the vision selector talk to any OpenAI-compatible endpoint
// through go-openai. Every call is retried on transient failures.
package llm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/product-research/internal/resilience"
	"github.com/sells-group/product-research/pkg/anthropic"
)

// Default models.
const (
	DefaultFastModel      = "claude-haiku-4-5-20251001"
	DefaultSynthesisModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// DefaultMaxImageCandidates caps the images shown to the vision model.
const DefaultMaxImageCandidates = 12

// ErrEmptyResponse is returned when a model answers with no usable text.
var ErrEmptyResponse = eris.New("llm: empty response")

// ErrInvalidJSON is returned when a synthesizer answer is not a JSON document.
var ErrInvalidJSON = eris.New("llm: response is not valid JSON")

// AnthropicConfig configures an Anthropic-backed collaborator. Zero values
// fall back to the collaborator's defaults.
type AnthropicConfig struct {
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
}

func (c AnthropicConfig) withDefaults(model string, maxTokens int64) AnthropicConfig {
	if c.Model == "" {
		c.Model = model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = maxTokens
	}
	return c
}

// OpenAIConfig configures a collaborator backed by an OpenAI-compatible
// chat completions endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Retry     resilience.RetryConfig
}

func newOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func retryConfig(cfg resilience.RetryConfig, service, phase string) resilience.RetryConfig {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = shouldRetry
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(service, phase)
	}
	return cfg
}

// shouldRetry extends resilience.IsTransient with go-openai's error types,
// which carry their status as a field.
func shouldRetry(err error) bool {
	if resilience.IsTransient(err) {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.IsTransientHTTPStatus(reqErr.HTTPStatusCode)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode)
	}
	return false
}

// createMessage sends req with retries, logs its cost under phase and
// returns the trimmed response text.
func createMessage(ctx context.Context, client anthropic.Client, retry resilience.RetryConfig, req anthropic.MessageRequest, phase string) (string, error) {
	resp, err := resilience.DoVal(ctx, retryConfig(retry, "anthropic", phase), func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "llm: %s", phase)
	}
	resp.Usage.LogCost(req.Model, phase)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Wrapf(ErrEmptyResponse, "llm: %s", phase)
	}
	return text, nil
}

// createChatCompletion sends req with retries, logs token usage under phase
// and returns the trimmed content of the first choice.
func createChatCompletion(ctx context.Context, client *openai.Client, retry resilience.RetryConfig, req openai.ChatCompletionRequest, phase string) (string, error) {
	resp, err := resilience.DoVal(ctx, retryConfig(retry, "openai", phase), func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "llm: %s", phase)
	}

	zap.L().Info("cost attribution",
		zap.String("model", req.Model),
		zap.String("phase", phase),
		zap.Int("input_tokens", resp.Usage.PromptTokens),
		zap.Int("output_tokens", resp.Usage.CompletionTokens),
	)

	if len(resp.Choices) == 0 {
		return "", eris.Wrapf(ErrEmptyResponse, "llm: %s: no choices", phase)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", eris.Wrapf(ErrEmptyResponse, "llm: %s", phase)
	}
	return text, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
