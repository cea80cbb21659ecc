// Package pipeline turns a product page URL into an enriched product record.
//
// A run extracts and cleans the submitted page, identifies the product,
// searches for corroborating sources, scrapes them concurrently, selects a
// representative image while summarizing the sources, and synthesizes the
// final record from the summaries. Collaborators are injected; the pipeline
// holds no configuration and no state across runs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-research/internal/metrics"
	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/internal/schema"
)

// MaxSearchResults is the number of search results scraped per run.
const MaxSearchResults = 7

// Extractor fetches the raw content of the submitted page.
type Extractor interface {
	Extract(ctx context.Context, url string) (*model.SourceDocument, error)
}

// Cleaner strips noise from raw content.
type Cleaner interface {
	Clean(ctx context.Context, content string) (string, error)
}

// Identifier derives a product name from cleaned content.
type Identifier interface {
	IdentifyName(ctx context.Context, content string) (string, error)
}

// Searcher returns candidate sources for a query, best first.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// ResultScraper scrapes one search result.
type ResultScraper interface {
	ScrapeResult(ctx context.Context, url, productHint string) (*model.ScrapedPage, error)
}

// ImageSelector picks the image that best represents the product. A nil
// image means none is suitable.
type ImageSelector interface {
	SelectBestImage(ctx context.Context, images []model.Image, productName string) (*model.Image, error)
}

// Summarizer condenses one source into a short factual summary.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Synthesizer answers a prompt with a JSON document shaped by target.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string, target *schema.Schema) (json.RawMessage, error)
}

// Stats describes the evidence behind one record.
type Stats struct {
	SearchResults   int `json:"searchResults"`
	ScrapeAttempts  int `json:"scrapeAttempts"`
	ScrapeFailures  int `json:"scrapeFailures"`
	Summarized      int `json:"summarized"`
	SummaryFailures int `json:"summaryFailures"`
	ImageCandidates int `json:"imageCandidates"`
}

// Scraped returns the number of sources that were scraped successfully.
func (s Stats) Scraped() int {
	return s.ScrapeAttempts - s.ScrapeFailures
}

// Result is a produced record together with its stats.
type Result struct {
	Record *model.ProductRecord
	Stats  Stats
}

// Pipeline sequences the collaborators of one product research run.
type Pipeline struct {
	extractor   Extractor
	cleaner     Cleaner
	identifier  Identifier
	searcher    Searcher
	scraper     ResultScraper
	selector    ImageSelector
	summarizer  Summarizer
	synthesizer Synthesizer
	target      *schema.Schema
}

// New creates a Pipeline with all collaborators.
func New(
	extractor Extractor,
	cleaner Cleaner,
	identifier Identifier,
	searcher Searcher,
	scraper ResultScraper,
	selector ImageSelector,
	summarizer Summarizer,
	synthesizer Synthesizer,
) (*Pipeline, error) {
	target, err := schema.ProductDetails()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: product schema")
	}
	return &Pipeline{
		extractor:   extractor,
		cleaner:     cleaner,
		identifier:  identifier,
		searcher:    searcher,
		scraper:     scraper,
		selector:    selector,
		summarizer:  summarizer,
		synthesizer: synthesizer,
		target:      target,
	}, nil
}

// Produce runs the pipeline for rawURL and returns the record.
func (p *Pipeline) Produce(ctx context.Context, rawURL string) (*model.ProductRecord, error) {
	res, err := p.Run(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// Run runs the pipeline for rawURL. Failures of the submitted page,
// cleaning, identification and synthesis abort the run; failures of
// individual sources are logged, counted in Stats and otherwise ignored.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*Result, error) {
	res, err := p.run(ctx, rawURL)
	switch {
	case err == nil:
		metrics.RecordRun(metrics.OutcomeSuccess)
	case errors.Is(err, ErrInvalidInput):
		metrics.RecordRun(metrics.OutcomeInvalidInput)
	default:
		metrics.RecordRun(metrics.OutcomeFailed)
		fields := []zap.Field{zap.String("url", rawURL), zap.Error(err)}
		var se *StageError
		if errors.As(err, &se) {
			fields = append(fields, zap.String("stage", se.Stage))
		}
		LoggerFrom(ctx).Error("pipeline: failed", fields...)
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, rawURL string) (*Result, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	log := LoggerFrom(ctx).With(zap.String("url", target))
	log.Info("pipeline: starting")
	start := time.Now()

	var doc *model.SourceDocument
	err = timed(metrics.StageExtract, func() error {
		var extractErr error
		doc, extractErr = p.extractor.Extract(ctx, target)
		return extractErr
	})
	if err != nil {
		return nil, fatal(metrics.StageExtract, ErrExtractionFailed, err)
	}
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return nil, fatal(metrics.StageExtract, ErrExtractionFailed, eris.New("no usable content"))
	}

	var cleaned string
	err = timed(metrics.StageClean, func() error {
		var cleanErr error
		cleaned, cleanErr = p.cleaner.Clean(ctx, doc.Content)
		return cleanErr
	})
	if err != nil {
		return nil, fatal(metrics.StageClean, ErrCleaningFailed, err)
	}

	var name string
	err = timed(metrics.StageIdentify, func() error {
		var idErr error
		name, idErr = p.identifier.IdentifyName(ctx, cleaned)
		return idErr
	})
	if err != nil {
		return nil, fatal(metrics.StageIdentify, ErrIdentificationFailed, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fatal(metrics.StageIdentify, ErrIdentificationFailed, eris.New("empty product name"))
	}
	log = log.With(zap.String("product", name))

	var stats Stats
	results := p.search(ctx, log, name)
	stats.SearchResults = len(results)

	batch, scrapeFailures := p.scrapeAll(ctx, log, results, name)
	stats.ScrapeAttempts = len(results)
	stats.ScrapeFailures = scrapeFailures
	stats.ImageCandidates = len(batch.Images)

	var (
		image           *model.Image
		summaries       []string
		summaryFailures int
	)
	var g errgroup.Group
	g.Go(func() error {
		image = p.selectImage(ctx, log, batch.Images, name)
		return nil
	})
	g.Go(func() error {
		summaries, summaryFailures = p.summarizeAll(ctx, log, batch.Contents)
		return nil
	})
	_ = g.Wait()
	stats.Summarized = len(summaries)
	stats.SummaryFailures = summaryFailures

	var details model.ProductDetails
	err = timed(metrics.StageSynthesize, func() error {
		raw, synthErr := p.synthesizer.Synthesize(ctx, BuildPrompt(name, strings.Join(summaries, "\n\n")), p.target)
		if synthErr != nil {
			return synthErr
		}
		return p.target.Decode(raw, &details)
	})
	if err != nil {
		return nil, fatal(metrics.StageSynthesize, ErrSynthesisFailed, err)
	}
	details.Normalize()

	metrics.ObserveSources("searched", stats.SearchResults)
	metrics.ObserveSources("scraped", stats.Scraped())
	metrics.ObserveSources("summarized", stats.Summarized)

	log.Info("pipeline: complete",
		zap.Int("search_results", stats.SearchResults),
		zap.Int("scraped", stats.Scraped()),
		zap.Int("scrape_failures", stats.ScrapeFailures),
		zap.Int("summarized", stats.Summarized),
		zap.Int("summary_failures", stats.SummaryFailures),
		zap.Int("image_candidates", stats.ImageCandidates),
		zap.Bool("image_selected", image != nil),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Record: &model.ProductRecord{ProductDetails: details, Image: image},
		Stats:  stats,
	}, nil
}

// search returns at most MaxSearchResults results. A failed search counts
// as an empty one.
func (p *Pipeline) search(ctx context.Context, log *zap.Logger, name string) []model.SearchResult {
	var results []model.SearchResult
	err := timed(metrics.StageSearch, func() error {
		var searchErr error
		results, searchErr = p.searcher.Search(ctx, name)
		return searchErr
	})
	if err != nil {
		metrics.RecordItemFailure(metrics.StageSearch)
		log.Warn("pipeline: search failed, continuing without sources", zap.Error(err))
		return nil
	}
	if len(results) > MaxSearchResults {
		results = results[:MaxSearchResults]
	}
	return results
}

// selectImage returns the chosen image. Selector failures count as no
// image.
func (p *Pipeline) selectImage(ctx context.Context, log *zap.Logger, images []model.Image, name string) *model.Image {
	var image *model.Image
	err := timed(metrics.StageSelect, func() error {
		var selectErr error
		image, selectErr = p.selector.SelectBestImage(ctx, images, name)
		return selectErr
	})
	if err != nil {
		metrics.RecordItemFailure(metrics.StageSelect)
		log.Warn("pipeline: image selection failed", zap.Int("candidates", len(images)), zap.Error(err))
		return nil
	}
	return image
}

func validateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", eris.Wrap(ErrInvalidInput, "url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", eris.Wrapf(ErrInvalidInput, "url must be an absolute http(s) URL: %q", trimmed)
	}
	return trimmed, nil
}

func timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(stage, time.Since(start))
	return err
}
