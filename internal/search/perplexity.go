package search

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/pkg/perplexity"
)

const perplexityPrompt = `Find web pages about the product "%s": the manufacturer's product page, ` +
	`major retailer listings with prices, and independent reviews. List each page's title and URL.`

// PerplexityProvider uses the web search behind a Perplexity chat
// completion and returns the pages it consulted.
type PerplexityProvider struct {
	client perplexity.Client
	model  string
}

// NewPerplexityProvider creates a PerplexityProvider. An empty model uses
// the client default.
func NewPerplexityProvider(client perplexity.Client, model string) *PerplexityProvider {
	return &PerplexityProvider{client: client, model: model}
}

// Name implements Provider.
func (p *PerplexityProvider) Name() string { return "perplexity" }

// Search implements Provider. Structured search_results are preferred;
// bare citations are the fallback.
func (p *PerplexityProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	temp := 0.0
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       p.model,
		Messages:    []perplexity.Message{{Role: "user", Content: fmt.Sprintf(perplexityPrompt, query)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: perplexity")
	}

	if len(resp.SearchResults) > 0 {
		results := make([]model.SearchResult, 0, len(resp.SearchResults))
		for _, r := range resp.SearchResults {
			results = append(results, model.SearchResult{URL: r.URL, Title: r.Title, Snippet: truncate(r.Snippet, maxSnippetChars)})
		}
		return results, nil
	}

	results := make([]model.SearchResult, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		results = append(results, model.SearchResult{URL: c})
	}
	return results, nil
}
