package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true; Firecrawl is the last resort for any URL.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API. The page's
// og:image, when present, leads the discovered images.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape not successful: %s", resp.Error)
	}

	meta := resp.Data.Metadata
	pageURL := meta.SourceURL
	if pageURL == "" {
		pageURL = targetURL
	}

	var images []model.Image
	if abs := resolveURL(pageURL, meta.OGImage); abs != "" {
		images = append(images, model.Image{URL: abs, Alt: meta.Title, SourceURL: pageURL})
	}
	images = append(images, MarkdownImages(resp.Data.Markdown, pageURL)...)

	return &Result{
		Page: model.CrawledPage{
			URL:        pageURL,
			Title:      meta.Title,
			Content:    resp.Data.Markdown,
			StatusCode: meta.StatusCode,
		},
		Images: images,
		Source: "firecrawl",
	}, nil
}
