package model

// CrawledPage is a single fetched page as returned by a scraper.
// Content holds markdown or plaintext depending on the scraper; HTML is
// populated only by scrapers that see the raw document.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	HTML       string `json:"html,omitempty"`
	StatusCode int    `json:"status_code"`
}

// Body returns the richest representation available for cleaning.
func (p CrawledPage) Body() string {
	if p.HTML != "" {
		return p.HTML
	}
	return p.Content
}

// SourceDocument is the text content of one source, owned by a single
// pipeline invocation.
type SourceDocument struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// SearchResult is one candidate source returned by a search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Image references a picture discovered on a scraped page.
type Image struct {
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// ScrapedPage is the output of scraping one search result.
type ScrapedPage struct {
	Document SourceDocument
	Images   []Image
}

// ScrapedBatch collects the scraped pages of a single request. Contents and
// Images each follow search-result order but are not positionally related
// to each other.
type ScrapedBatch struct {
	Contents []SourceDocument
	Images   []Image
}
