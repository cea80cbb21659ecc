package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-research/internal/metrics"
	"github.com/sells-group/product-research/internal/model"
)

// scrapeAll scrapes every result concurrently. Each goroutine owns one slot,
// so contents and images come out in result order whatever the completion
// order. Failed scrapes leave their slot empty and are counted.
func (p *Pipeline) scrapeAll(ctx context.Context, log *zap.Logger, results []model.SearchResult, hint string) (model.ScrapedBatch, int) {
	batch := model.ScrapedBatch{Contents: []model.SourceDocument{}, Images: []model.Image{}}
	if len(results) == 0 {
		return batch, 0
	}

	start := time.Now()
	pages := make([]*model.ScrapedPage, len(results))
	var g errgroup.Group
	g.SetLimit(len(results))
	for i, r := range results {
		g.Go(func() error {
			page, err := p.scraper.ScrapeResult(ctx, r.URL, hint)
			if err != nil {
				metrics.RecordItemFailure(metrics.StageScrape)
				log.Warn("pipeline: scrape failed", zap.String("source", r.URL), zap.Error(err))
				return nil
			}
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()
	metrics.ObserveStage(metrics.StageScrape, time.Since(start))

	failures := 0
	for _, page := range pages {
		if page == nil {
			failures++
			continue
		}
		batch.Contents = append(batch.Contents, page.Document)
		batch.Images = append(batch.Images, page.Images...)
	}
	return batch, failures
}

// summarizeAll summarizes every content concurrently and returns the
// non-empty summaries in content order, plus the number of failures.
func (p *Pipeline) summarizeAll(ctx context.Context, log *zap.Logger, contents []model.SourceDocument) ([]string, int) {
	if len(contents) == 0 {
		return nil, 0
	}

	start := time.Now()
	slots := make([]string, len(contents))
	failed := make([]bool, len(contents))
	var g errgroup.Group
	g.SetLimit(len(contents))
	for i, doc := range contents {
		g.Go(func() error {
			summary, err := p.summarizer.Summarize(ctx, doc.Content)
			if err != nil {
				failed[i] = true
				metrics.RecordItemFailure(metrics.StageSummarize)
				log.Warn("pipeline: summarize failed", zap.String("source", doc.URL), zap.Error(err))
				return nil
			}
			slots[i] = strings.TrimSpace(summary)
			return nil
		})
	}
	_ = g.Wait()
	metrics.ObserveStage(metrics.StageSummarize, time.Since(start))

	summaries := make([]string, 0, len(slots))
	failures := 0
	for i, s := range slots {
		switch {
		case failed[i]:
			failures++
		case s != "":
			summaries = append(summaries, s)
		}
	}
	return summaries, failures
}
