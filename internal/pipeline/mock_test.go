package pipeline

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/product-research/internal/model"
	"github.com/sells-group/product-research/internal/schema"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, url string) (*model.SourceDocument, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceDocument), args.Error(1)
}

// --- Cleaner Mock ---

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) Clean(ctx context.Context, content string) (string, error) {
	args := m.Called(ctx, content)
	return args.String(0), args.Error(1)
}

// --- Identifier Mock ---

type mockIdentifier struct {
	mock.Mock
}

func (m *mockIdentifier) IdentifyName(ctx context.Context, content string) (string, error) {
	args := m.Called(ctx, content)
	return args.String(0), args.Error(1)
}

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

// --- ResultScraper Mock ---

type mockResultScraper struct {
	mock.Mock
}

func (m *mockResultScraper) ScrapeResult(ctx context.Context, url, productHint string) (*model.ScrapedPage, error) {
	args := m.Called(ctx, url, productHint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScrapedPage), args.Error(1)
}

// --- ImageSelector Mock ---

type mockImageSelector struct {
	mock.Mock
}

func (m *mockImageSelector) SelectBestImage(ctx context.Context, images []model.Image, productName string) (*model.Image, error) {
	args := m.Called(ctx, images, productName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Image), args.Error(1)
}

// --- Summarizer Mock ---

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	args := m.Called(ctx, content)
	return args.String(0), args.Error(1)
}

// --- Synthesizer Mock ---

type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, prompt string, target *schema.Schema) (json.RawMessage, error) {
	args := m.Called(ctx, prompt, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// mocks bundles one of each collaborator double.
type mocks struct {
	extractor   *mockExtractor
	cleaner     *mockCleaner
	identifier  *mockIdentifier
	searcher    *mockSearcher
	scraper     *mockResultScraper
	selector    *mockImageSelector
	summarizer  *mockSummarizer
	synthesizer *mockSynthesizer
}

func newMocks() *mocks {
	return &mocks{
		extractor:   &mockExtractor{},
		cleaner:     &mockCleaner{},
		identifier:  &mockIdentifier{},
		searcher:    &mockSearcher{},
		scraper:     &mockResultScraper{},
		selector:    &mockImageSelector{},
		summarizer:  &mockSummarizer{},
		synthesizer: &mockSynthesizer{},
	}
}

func (m *mocks) all() []*mock.Mock {
	return []*mock.Mock{
		&m.extractor.Mock, &m.cleaner.Mock, &m.identifier.Mock, &m.searcher.Mock,
		&m.scraper.Mock, &m.selector.Mock, &m.summarizer.Mock, &m.synthesizer.Mock,
	}
}
