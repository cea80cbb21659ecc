package llm

import (
	"context"
	"strings"

	"github.com/sells-group/product-research/pkg/anthropic"
)

const summarizeMaxTokens = 1024

const summarizeSystemPrompt = `You summarize one web page about a product for a research assistant.
Write a concise, factual summary using only information stated on the page. Cover, when present:
- what the product is and who makes it
- prices together with the retailer, country and URL where it is sold
- average rating, number of reviews and the gist of what reviewers say
- technical specifications as label: value lines
- questions and answers about the product
Omit navigation, advertising and unrelated products. Do not speculate.`

// Summarizer condenses one scraped source into a factual summary.
type Summarizer struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewSummarizer creates a Summarizer. The default model is Haiku.
func NewSummarizer(client anthropic.Client, cfg AnthropicConfig) *Summarizer {
	return &Summarizer{client: client, cfg: cfg.withDefaults(DefaultFastModel, summarizeMaxTokens)}
}

// Summarize returns a summary of content. Blank content yields an empty
// summary without a model call.
func (s *Summarizer) Summarize(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}

	temp := 0.0
	return createMessage(ctx, s.client, s.cfg.Retry, anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		System:      anthropic.CachedSystem(summarizeSystemPrompt, "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: content}},
		Temperature: &temp,
	}, "summarize")
}
