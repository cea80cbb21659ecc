// Package search discovers pages that corroborate a product: retailer
// listings, reviews and manufacturer pages.
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-research/internal/model"
)

// Provider runs a web search for a query.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Fallback tries providers in order and returns the first non-empty
// result set.
type Fallback struct {
	providers []Provider
}

// NewFallback creates a Fallback over providers, highest priority first.
func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{providers: providers}
}

// Search returns deduplicated results from the first provider that finds
// any. An error is returned only when every provider failed.
func (f *Fallback) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	var errs []string
	for _, p := range f.providers {
		results, err := p.Search(ctx, query)
		if err != nil {
			zap.L().Warn("search: provider failed",
				zap.String("provider", p.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			errs = append(errs, p.Name()+": "+err.Error())
			continue
		}
		if results = Dedupe(results); len(results) > 0 {
			zap.L().Debug("search: provider returned results",
				zap.String("provider", p.Name()),
				zap.Int("count", len(results)),
			)
			return results, nil
		}
	}
	if len(errs) == len(f.providers) && len(errs) > 0 {
		return nil, eris.Errorf("search: all providers failed: %s", strings.Join(errs, "; "))
	}
	return nil, nil
}

// Dedupe drops results without a usable http(s) URL and repeats of the
// same URL (ignoring fragment and trailing slash), preserving order.
func Dedupe(results []model.SearchResult) []model.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		key, ok := canonicalKey(r.URL)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func canonicalKey(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), true
}
