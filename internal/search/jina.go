package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/pkg/jina"
)

const maxSnippetChars = 500

// JinaProvider searches with Jina AI Search.
type JinaProvider struct {
	client  jina.Client
	country string
}

// NewJinaProvider creates a JinaProvider. country, when set, biases results
// toward that market.
func NewJinaProvider(client jina.Client, country string) *JinaProvider {
	return &JinaProvider{client: client, country: country}
}

// Name implements Provider.
func (p *JinaProvider) Name() string { return "jina" }

// Search implements Provider.
func (p *JinaProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	var opts []jina.SearchOption
	if p.country != "" {
		opts = append(opts, jina.WithCountry(p.country))
	}

	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}

	results := make([]model.SearchResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		snippet := d.Description
		if snippet == "" {
			snippet = d.Content
		}
		results = append(results, model.SearchResult{
			URL:     d.URL,
			Title:   strings.TrimSpace(d.Title),
			Snippet: truncate(strings.TrimSpace(snippet), maxSnippetChars),
		})
	}
	return results, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
