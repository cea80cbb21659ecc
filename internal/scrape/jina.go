package scrape

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/internal/resilience"
	"github.com/sells-group/product-research/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper with a circuit breaker.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaAdapter creates a JinaAdapter. While the breaker is open the
// adapter reports itself unsupported so the chain skips straight to the
// next scraper.
func NewJinaAdapter(client jina.Client, breaker resilience.CircuitBreakerConfig) *JinaAdapter {
	if breaker.OnStateChange == nil {
		breaker.OnStateChange = resilience.BreakerLogger("jina")
	}
	return &JinaAdapter{
		client:  client,
		breaker: resilience.NewCircuitBreaker(breaker),
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*Result, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response needs fallback")
		}

		pageURL := resp.Data.URL
		if pageURL == "" {
			pageURL = targetURL
		}
		images := summaryImages(resp.Data.Images, pageURL)
		images = append(images, MarkdownImages(resp.Data.Content, pageURL)...)

		return &Result{
			Page: model.CrawledPage{
				URL:        pageURL,
				Title:      resp.Data.Title,
				Content:    resp.Data.Content,
				StatusCode: resp.Code,
			},
			Images: images,
			Source: "jina",
		}, nil
	})
}

// summaryImages converts Jina's alt→url image summary into images, sorted
// by alt text so output is stable.
func summaryImages(summary map[string]string, pageURL string) []model.Image {
	alts := make([]string, 0, len(summary))
	for alt := range summary {
		alts = append(alts, alt)
	}
	sort.Strings(alts)

	images := make([]model.Image, 0, len(alts))
	for _, alt := range alts {
		if abs := resolveURL(pageURL, summary[alt]); abs != "" {
			images = append(images, model.Image{URL: abs, Alt: alt, SourceURL: pageURL})
		}
	}
	return images
}

// needsFallback reports whether a Jina response is blocked, empty or a
// bot-challenge page that another scraper should retry.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
	"are you a robot",
	"press & hold",
}
