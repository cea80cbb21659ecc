package scrape

import (
	"context"

	"github.com/sells-group/product-research/internal/model"
)

// Result holds a scraped page, the images discovered on it, and the
// scraper that produced it.
type Result struct {
	Page   model.CrawledPage
	Images []model.Image
	Source string // e.g. "local_http", "jina", "firecrawl"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
