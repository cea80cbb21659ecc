package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-research/internal/clean"
	"github.com/sells-group/product-research/internal/llm"
	"github.com/sells-group/product-research/internal/pipeline"
	"github.com/sells-group/product-research/internal/resilience"
	"github.com/sells-group/product-research/internal/scrape"
	"github.com/sells-group/product-research/internal/search"
	anthropicpkg "github.com/sells-group/product-research/pkg/anthropic"
	"github.com/sells-group/product-research/pkg/firecrawl"
	"github.com/sells-group/product-research/pkg/jina"
	"github.com/sells-group/product-research/pkg/perplexity"
)

// initPipeline validates the config for mode, builds every API client and
// collaborator, and returns the assembled Pipeline.
func initPipeline(mode string) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	var anthropicOpts []anthropicpkg.Option
	if cfg.Anthropic.BaseURL != "" {
		anthropicOpts = append(anthropicOpts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicOpts...)

	chain := buildScrapeChain(jinaClient)
	cleaner := clean.New(cfg.Clean.MaxChars)

	searcher, err := buildSearcher(jinaClient)
	if err != nil {
		return nil, err
	}

	retry := resilience.FromRetryConfig(cfg.LLM.RetryMaxAttempts, cfg.LLM.RetryInitialBackoffMs, cfg.LLM.RetryMaxBackoffMs)
	fast := llm.AnthropicConfig{Model: cfg.Anthropic.HaikuModel, Retry: retry}

	synthesizer, err := buildSynthesizer(anthropicClient, retry)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(
		scrape.NewExtractor(chain),
		cleaner,
		llm.NewIdentifier(anthropicClient, fast),
		searcher,
		scrape.NewResultScraper(chain, cleaner, scrape.ResultScraperConfig{
			MaxContentChars:  cfg.Scrape.MaxContentChars,
			MaxImagesPerPage: cfg.Scrape.MaxImagesPerPage,
		}),
		buildImageSelector(retry),
		llm.NewSummarizer(anthropicClient, fast),
		synthesizer,
	)
	if err != nil {
		return nil, eris.Wrap(err, "build pipeline")
	}
	return p, nil
}

// buildScrapeChain orders scrapers cheapest first: local HTTP, then Jina
// behind a circuit breaker, then Firecrawl when a key is configured.
func buildScrapeChain(jinaClient jina.Client) *scrape.Chain {
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(time.Duration(cfg.Scrape.TimeoutSecs) * time.Second),
	}
	if cfg.Jina.Key != "" {
		scrapers = append(scrapers, scrape.NewJinaAdapter(jinaClient,
			resilience.FromCircuitConfig(cfg.Scrape.CircuitFailureThreshold, cfg.Scrape.CircuitResetSecs)))
	}
	if cfg.Firecrawl.Key != "" {
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(
			firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))))
	} else {
		zap.L().Debug("PRODUCT_FIRECRAWL_KEY not set, firecrawl fallback disabled")
	}
	chain := scrape.NewChain(scrape.NewPathMatcher(cfg.Scrape.ExcludePaths), scrapers...)
	zap.L().Info("scrape chain ready",
		zap.Strings("scrapers", chain.Names()),
		zap.Strings("exclude_paths", chain.PathMatcher.Patterns()),
	)
	return chain
}

// buildSearcher creates the search providers in configured order.
func buildSearcher(jinaClient jina.Client) (*search.Fallback, error) {
	var providers []search.Provider
	for _, name := range cfg.Search.Providers {
		switch name {
		case "jina":
			providers = append(providers, search.NewJinaProvider(jinaClient, cfg.Search.Country))
		case "perplexity":
			client := perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model))
			providers = append(providers, search.NewPerplexityProvider(client, cfg.Perplexity.Model))
		default:
			return nil, eris.Errorf("unknown search provider %q", name)
		}
	}
	return search.NewFallback(providers...), nil
}

func buildSynthesizer(client anthropicpkg.Client, retry resilience.RetryConfig) (pipeline.Synthesizer, error) {
	switch cfg.LLM.Synthesizer {
	case "", "anthropic":
		return llm.NewAnthropicSynthesizer(client, llm.AnthropicConfig{
			Model: cfg.Anthropic.SonnetModel,
			Retry: retry,
		}), nil
	case "openai":
		return llm.NewOpenAISynthesizer(llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.Key,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Retry:   retry,
		}), nil
	default:
		return nil, eris.Errorf("unknown synthesizer %q", cfg.LLM.Synthesizer)
	}
}

// buildImageSelector uses the vision model when an OpenAI key is present and
// otherwise keeps the first candidate.
func buildImageSelector(retry resilience.RetryConfig) pipeline.ImageSelector {
	if cfg.OpenAI.Key == "" {
		zap.L().Info("PRODUCT_OPENAI_KEY not set, using first-candidate image selection")
		return llm.FirstImageSelector{}
	}
	return llm.NewVisionImageSelector(llm.OpenAIConfig{
		APIKey:  cfg.OpenAI.Key,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.VisionModel,
		Retry:   retry,
	}, cfg.LLM.MaxImageCandidates)
}
