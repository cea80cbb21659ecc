package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/internal/schema"
)

const (
	productURL  = "https://example.com/prod1"
	productName = "Widget X"
	rawPage     = "Widget X details..."
)

const synthesized = `{
  "name": "Widget X",
  "description": "A compact widget.",
  "ratings": {"average": 4.5, "count": 120, "summary": "Well liked."},
  "whereToBuy": [{"retailer": "Acme", "country": "US", "price": "USD 19.99", "url": "https://acme.example/x"}],
  "specifications": [{"label": "Weight", "value": "200 g"}],
  "faq": [{"question": "Is it waterproof?", "answer": "No."}]
}`

const emptySynthesized = `{
  "name": "Widget X",
  "description": "",
  "ratings": {"average": 0, "count": 0, "summary": ""},
  "whereToBuy": [],
  "specifications": [],
  "faq": []
}`

func searchResults(n int) []model.SearchResult {
	results := make([]model.SearchResult, n)
	for i := range results {
		results[i] = model.SearchResult{
			URL:   fmt.Sprintf("https://source%d.example.com/widget-x", i),
			Title: fmt.Sprintf("Widget X at source %d", i),
		}
	}
	return results
}

func scrapedPage(i int) *model.ScrapedPage {
	src := fmt.Sprintf("https://source%d.example.com/widget-x", i)
	return &model.ScrapedPage{
		Document: model.SourceDocument{URL: src, Content: fmt.Sprintf("content %d", i)},
		Images:   []model.Image{{URL: fmt.Sprintf("https://cdn%d.example.com/widget.jpg", i), SourceURL: src}},
	}
}

func newPipeline(t *testing.T, m *mocks) *Pipeline {
	t.Helper()
	p, err := New(m.extractor, m.cleaner, m.identifier, m.searcher, m.scraper, m.selector, m.summarizer, m.synthesizer)
	require.NoError(t, err)
	return p
}

// expectFront sets up extraction, cleaning, identification and search.
func expectFront(m *mocks, results []model.SearchResult) {
	m.extractor.On("Extract", mock.Anything, productURL).Return(&model.SourceDocument{URL: productURL, Content: rawPage}, nil).Once()
	m.cleaner.On("Clean", mock.Anything, rawPage).Return(rawPage, nil).Once()
	m.identifier.On("IdentifyName", mock.Anything, rawPage).Return(productName, nil).Once()
	m.searcher.On("Search", mock.Anything, productName).Return(results, nil).Once()
}

// expectScrapes makes result i succeed unless it is in failing.
func expectScrapes(m *mocks, results []model.SearchResult, failing ...int) {
	fail := make(map[int]bool, len(failing))
	for _, i := range failing {
		fail[i] = true
	}
	for i, r := range results {
		if fail[i] {
			m.scraper.On("ScrapeResult", mock.Anything, r.URL, productName).Return(nil, errors.New("blocked")).Once()
			continue
		}
		m.scraper.On("ScrapeResult", mock.Anything, r.URL, productName).Return(scrapedPage(i), nil).Once()
	}
}

func expectSummaries(m *mocks, indexes ...int) {
	for _, i := range indexes {
		m.summarizer.On("Summarize", mock.Anything, fmt.Sprintf("content %d", i)).Return(fmt.Sprintf("summary %d", i), nil).Once()
	}
}

func imagesFor(indexes ...int) []model.Image {
	var images []model.Image
	for _, i := range indexes {
		images = append(images, scrapedPage(i).Images...)
	}
	return images
}

func TestRun_RejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/file", "/relative/path"} {
		t.Run(raw, func(t *testing.T) {
			m := newMocks()
			p := newPipeline(t, m)

			res, err := p.Run(context.Background(), raw)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Nil(t, res)
			for _, mm := range m.all() {
				assert.Empty(t, mm.Calls)
			}
		})
	}
}

func TestRun_TenResultsScenario(t *testing.T) {
	m := newMocks()
	results := searchResults(10)
	expectFront(m, results)
	expectScrapes(m, results[:MaxSearchResults], 2, 5)
	expectSummaries(m, 0, 1, 3, 4, 6)

	chosen := imagesFor(3)[0]
	m.selector.On("SelectBestImage", mock.Anything, imagesFor(0, 1, 3, 4, 6), productName).Return(&chosen, nil).Once()

	wantSummaries := "summary 0\n\nsummary 1\n\nsummary 3\n\nsummary 4\n\nsummary 6"
	m.synthesizer.On("Synthesize", mock.Anything, BuildPrompt(productName, wantSummaries), mock.AnythingOfType("*schema.Schema")).
		Return(json.RawMessage(synthesized), nil).Once()

	p := newPipeline(t, m)
	res, err := p.Run(context.Background(), productURL)

	require.NoError(t, err)
	for _, mm := range m.all() {
		mm.AssertExpectations(t)
	}
	m.scraper.AssertNumberOfCalls(t, "ScrapeResult", MaxSearchResults)
	m.summarizer.AssertNumberOfCalls(t, "Summarize", 5)
	m.synthesizer.AssertNumberOfCalls(t, "Synthesize", 1)
	m.selector.AssertNumberOfCalls(t, "SelectBestImage", 1)

	require.NotNil(t, res.Record.Image)
	assert.Equal(t, chosen, *res.Record.Image)
	assert.NotEmpty(t, res.Record.Specifications)
	assert.Equal(t, "Widget X", res.Record.Name)
	assert.Equal(t, Stats{
		SearchResults:   MaxSearchResults,
		ScrapeAttempts:  MaxSearchResults,
		ScrapeFailures:  2,
		Summarized:      5,
		ImageCandidates: 5,
	}, res.Stats)
	assert.Equal(t, 5, res.Stats.Scraped())
}

func TestRun_OneScrapeFailureTolerated(t *testing.T) {
	m := newMocks()
	results := searchResults(3)
	expectFront(m, results)
	expectScrapes(m, results, 1)
	expectSummaries(m, 0, 2)
	m.selector.On("SelectBestImage", mock.Anything, imagesFor(0, 2), productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "summary 0\n\nsummary 2")
	}), mock.Anything).Return(json.RawMessage(synthesized), nil).Once()

	res, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.NoError(t, err)
	assert.LessOrEqual(t, res.Stats.Summarized, 2)
	assert.Equal(t, 1, res.Stats.ScrapeFailures)
}

func TestRun_AllScrapesFail(t *testing.T) {
	m := newMocks()
	results := searchResults(4)
	expectFront(m, results)
	expectScrapes(m, results, 0, 1, 2, 3)
	m.selector.On("SelectBestImage", mock.Anything, []model.Image{}, productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, BuildPrompt(productName, ""), mock.Anything).
		Return(json.RawMessage(emptySynthesized), nil).Once()

	res, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.NoError(t, err)
	m.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
	m.selector.AssertExpectations(t)
	m.synthesizer.AssertExpectations(t)
	assert.Equal(t, 4, res.Stats.ScrapeFailures)
	assert.Zero(t, res.Stats.Summarized)
	assert.Nil(t, res.Record.Image)
}

func TestRun_AllScrapesFailSynthesisError(t *testing.T) {
	m := newMocks()
	results := searchResults(2)
	expectFront(m, results)
	expectScrapes(m, results, 0, 1)
	m.selector.On("SelectBestImage", mock.Anything, mock.Anything, productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("model overloaded")).Once()

	_, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestRun_Deterministic(t *testing.T) {
	run := func() *model.ProductRecord {
		m := newMocks()
		results := searchResults(5)
		expectFront(m, results)
		expectScrapes(m, results, 4)
		expectSummaries(m, 0, 1, 2, 3)
		chosen := imagesFor(1)[0]
		m.selector.On("SelectBestImage", mock.Anything, imagesFor(0, 1, 2, 3), productName).Return(&chosen, nil).Once()
		m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(synthesized), nil).Once()

		rec, err := newPipeline(t, m).Produce(context.Background(), productURL)
		require.NoError(t, err)
		return rec
	}

	first, second := run(), run()
	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestRun_PreservesResultOrderUnderConcurrency(t *testing.T) {
	m := newMocks()
	results := searchResults(5)
	expectFront(m, results)
	for i, r := range results {
		// Earlier results finish later.
		delay := time.Duration(len(results)-i) * 5 * time.Millisecond
		m.scraper.On("ScrapeResult", mock.Anything, r.URL, productName).
			After(delay).Return(scrapedPage(i), nil).Once()
	}
	for i := range results {
		delay := time.Duration(len(results)-i) * 5 * time.Millisecond
		m.summarizer.On("Summarize", mock.Anything, fmt.Sprintf("content %d", i)).
			After(delay).Return(fmt.Sprintf("summary %d", i), nil).Once()
	}
	m.selector.On("SelectBestImage", mock.Anything, imagesFor(0, 1, 2, 3, 4), productName).Return(nil, nil).Once()
	want := "summary 0\n\nsummary 1\n\nsummary 2\n\nsummary 3\n\nsummary 4"
	m.synthesizer.On("Synthesize", mock.Anything, BuildPrompt(productName, want), mock.Anything).
		Return(json.RawMessage(synthesized), nil).Once()

	_, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.NoError(t, err)
	m.selector.AssertExpectations(t)
	m.synthesizer.AssertExpectations(t)
}

func TestRun_ExtractionFailure(t *testing.T) {
	tests := []struct {
		name string
		doc  *model.SourceDocument
		err  error
	}{
		{name: "error", err: errors.New("all scrapers failed")},
		{name: "nil document"},
		{name: "empty content", doc: &model.SourceDocument{URL: productURL, Content: "  \n "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			if tt.doc == nil && tt.err == nil {
				m.extractor.On("Extract", mock.Anything, productURL).Return(nil, nil).Once()
			} else {
				m.extractor.On("Extract", mock.Anything, productURL).Return(tt.doc, tt.err).Once()
			}

			_, err := newPipeline(t, m).Run(context.Background(), productURL)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtractionFailed)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
			for _, mm := range m.all()[1:] {
				assert.Empty(t, mm.Calls)
			}
		})
	}
}

func TestRun_CleaningFailure(t *testing.T) {
	m := newMocks()
	m.extractor.On("Extract", mock.Anything, productURL).Return(&model.SourceDocument{Content: rawPage}, nil).Once()
	m.cleaner.On("Clean", mock.Anything, rawPage).Return("", errors.New("converter failed")).Once()

	_, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCleaningFailed)
	assert.Empty(t, m.identifier.Calls)
	assert.Empty(t, m.searcher.Calls)
}

func TestRun_IdentificationFailure(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		err     error
		wantMsg string
	}{
		{name: "error", err: errors.New("anthropic: status 401"), wantMsg: "status 401"},
		{name: "blank name", result: "  ", wantMsg: "empty product name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.extractor.On("Extract", mock.Anything, productURL).Return(&model.SourceDocument{Content: rawPage}, nil).Once()
			m.cleaner.On("Clean", mock.Anything, rawPage).Return(rawPage, nil).Once()
			m.identifier.On("IdentifyName", mock.Anything, rawPage).Return(tt.result, tt.err).Once()

			_, err := newPipeline(t, m).Run(context.Background(), productURL)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIdentificationFailed)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Empty(t, m.searcher.Calls)
			assert.Empty(t, m.synthesizer.Calls)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "identify", se.Stage)
		})
	}
}

func TestRun_SynthesisNonConformant(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing specifications", doc: `{"name":"Widget X","description":"","ratings":{"average":0,"count":0,"summary":""},"whereToBuy":[],"faq":[]}`},
		{name: "null specifications", doc: `{"name":"Widget X","description":"","ratings":{"average":0,"count":0,"summary":""},"whereToBuy":[],"specifications":null,"faq":[]}`},
		{name: "not json", doc: `Widget X is great`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			expectFront(m, nil)
			m.selector.On("SelectBestImage", mock.Anything, mock.Anything, productName).Return(nil, nil).Once()
			m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(tt.doc), nil).Once()

			_, err := newPipeline(t, m).Run(context.Background(), productURL)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSynthesisFailed)
		})
	}
}

func TestRun_SynthesisReceivesProductSchema(t *testing.T) {
	m := newMocks()
	expectFront(m, nil)
	m.selector.On("SelectBestImage", mock.Anything, mock.Anything, productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.MatchedBy(func(s *schema.Schema) bool {
		_, hasImage := s.Definition.Properties["image"]
		return s.Name == "product_details" && !hasImage
	})).Return(json.RawMessage(synthesized), nil).Once()

	_, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.NoError(t, err)
	m.synthesizer.AssertExpectations(t)
}

func TestRun_SelectorNone(t *testing.T) {
	m := newMocks()
	results := searchResults(2)
	expectFront(m, results)
	expectScrapes(m, results)
	expectSummaries(m, 0, 1)
	m.selector.On("SelectBestImage", mock.Anything, imagesFor(0, 1), productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(emptySynthesized), nil).Once()

	rec, err := newPipeline(t, m).Produce(context.Background(), productURL)

	require.NoError(t, err)
	assert.Nil(t, rec.Image)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"image"`)
	assert.Contains(t, string(out), `"specifications":[]`)
	assert.Contains(t, string(out), `"whereToBuy":[]`)
	assert.Contains(t, string(out), `"faq":[]`)
}

func TestRun_SelectorErrorTolerated(t *testing.T) {
	m := newMocks()
	results := searchResults(1)
	expectFront(m, results)
	expectScrapes(m, results)
	expectSummaries(m, 0)
	m.selector.On("SelectBestImage", mock.Anything, mock.Anything, productName).Return(nil, errors.New("vision timeout")).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(synthesized), nil).Once()

	rec, err := newPipeline(t, m).Produce(context.Background(), productURL)

	require.NoError(t, err)
	assert.Nil(t, rec.Image)
}

func TestRun_SearchErrorTolerated(t *testing.T) {
	m := newMocks()
	m.extractor.On("Extract", mock.Anything, productURL).Return(&model.SourceDocument{Content: rawPage}, nil).Once()
	m.cleaner.On("Clean", mock.Anything, rawPage).Return(rawPage, nil).Once()
	m.identifier.On("IdentifyName", mock.Anything, rawPage).Return(productName, nil).Once()
	m.searcher.On("Search", mock.Anything, productName).Return(nil, errors.New("all providers failed")).Once()
	m.selector.On("SelectBestImage", mock.Anything, []model.Image{}, productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(emptySynthesized), nil).Once()

	res, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.NoError(t, err)
	assert.Zero(t, res.Stats.SearchResults)
	assert.Empty(t, m.scraper.Calls)
}

func TestRun_SummaryFailuresAndBlanksDropped(t *testing.T) {
	m := newMocks()
	results := searchResults(4)
	expectFront(m, results)
	expectScrapes(m, results)
	m.summarizer.On("Summarize", mock.Anything, "content 0").Return("summary 0", nil).Once()
	m.summarizer.On("Summarize", mock.Anything, "content 1").Return("", errors.New("rate limited")).Once()
	m.summarizer.On("Summarize", mock.Anything, "content 2").Return(" \n ", nil).Once()
	m.summarizer.On("Summarize", mock.Anything, "content 3").Return("summary 3", nil).Once()
	m.selector.On("SelectBestImage", mock.Anything, mock.Anything, productName).Return(nil, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, BuildPrompt(productName, "summary 0\n\nsummary 3"), mock.Anything).
		Return(json.RawMessage(synthesized), nil).Once()

	res, err := newPipeline(t, m).Run(context.Background(), productURL)

	require.NoError(t, err)
	m.synthesizer.AssertExpectations(t)
	assert.Equal(t, 2, res.Stats.Summarized)
	assert.Equal(t, 1, res.Stats.SummaryFailures)
}

func TestRun_ImageDoesNotReachSynthesizer(t *testing.T) {
	m := newMocks()
	results := searchResults(1)
	expectFront(m, results)
	expectScrapes(m, results)
	expectSummaries(m, 0)
	chosen := model.Image{URL: "https://cdn.example.com/chosen-widget.jpg"}
	m.selector.On("SelectBestImage", mock.Anything, mock.Anything, productName).Return(&chosen, nil).Once()
	m.synthesizer.On("Synthesize", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return !strings.Contains(prompt, chosen.URL) && !strings.Contains(prompt, "cdn0.example.com")
	}), mock.Anything).Return(json.RawMessage(synthesized), nil).Once()

	rec, err := newPipeline(t, m).Produce(context.Background(), productURL)

	require.NoError(t, err)
	assert.Equal(t, &chosen, rec.Image)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Widget X", "summary a\n\nsummary b")
	assert.Contains(t, prompt, `"Widget X"`)
	assert.True(t, strings.HasSuffix(prompt, "summary a\n\nsummary b"))
	for _, field := range []string{"name", "description", "ratings", "whereToBuy", "specifications", "faq"} {
		assert.Contains(t, prompt, field)
	}

	assert.Contains(t, BuildPrompt("Widget X", ""), "no source summaries")
}

func TestStageError(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fatal("synthesize", ErrSynthesisFailed, cause)

	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, "synthesis failed: context deadline exceeded", err.Error())
}
