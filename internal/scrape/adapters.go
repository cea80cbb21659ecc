package scrape

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-research/internal/model"
)

// DefaultMaxContentChars bounds the text handed to the summarizer for one
// search result.
const DefaultMaxContentChars = 20000

// Cleaner reduces raw page content to plain text.
type Cleaner interface {
	Clean(ctx context.Context, content string) (string, error)
}

// Extractor fetches the page a user submitted.
type Extractor struct {
	chain *Chain
}

// NewExtractor wraps a chain as the pipeline's content extractor.
func NewExtractor(chain *Chain) *Extractor {
	return &Extractor{chain: chain}
}

// Extract returns the raw body of the page at url. Cleaning is left to the
// caller. Exclude patterns do not apply to the submitted page.
func (e *Extractor) Extract(ctx context.Context, url string) (*model.SourceDocument, error) {
	res, err := e.chain.ScrapeUnfiltered(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "extract %s", url)
	}
	return &model.SourceDocument{
		URL:     res.Page.URL,
		Title:   res.Page.Title,
		Content: res.Page.Body(),
	}, nil
}

// ResultScraperConfig tunes ResultScraper output.
type ResultScraperConfig struct {
	MaxContentChars  int
	MaxImagesPerPage int
}

// ResultScraper fetches a search result page and returns its cleaned text
// together with the product images found on it.
type ResultScraper struct {
	chain   *Chain
	cleaner Cleaner
	cfg     ResultScraperConfig
}

// NewResultScraper creates a ResultScraper. Zero config values use the
// package defaults.
func NewResultScraper(chain *Chain, cleaner Cleaner, cfg ResultScraperConfig) *ResultScraper {
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultMaxContentChars
	}
	if cfg.MaxImagesPerPage <= 0 {
		cfg.MaxImagesPerPage = DefaultMaxImagesPerPage
	}
	return &ResultScraper{chain: chain, cleaner: cleaner, cfg: cfg}
}

// ScrapeResult scrapes url, cleans the page and ranks its images using
// productHint. A page with no text after cleaning is an error.
func (r *ResultScraper) ScrapeResult(ctx context.Context, url, productHint string) (*model.ScrapedPage, error) {
	res, err := r.chain.Scrape(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape result %s", url)
	}

	text, err := r.cleaner.Clean(ctx, res.Page.Body())
	if err != nil {
		return nil, eris.Wrapf(err, "clean result %s", url)
	}
	text = truncateRunes(strings.TrimSpace(text), r.cfg.MaxContentChars)
	if text == "" {
		return nil, eris.Errorf("scrape result %s: no content", url)
	}

	return &model.ScrapedPage{
		Document: model.SourceDocument{
			URL:     res.Page.URL,
			Title:   res.Page.Title,
			Content: text,
		},
		Images: FilterImages(res.Images, productHint, r.cfg.MaxImagesPerPage),
	}, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
