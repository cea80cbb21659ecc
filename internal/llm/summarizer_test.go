package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-research/pkg/anthropic"
	anthropicmocks "github.com/sells-group/product-research/pkg/anthropic/mocks"
)

func TestSummarizer_Summarize(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-custom" &&
			req.MaxTokens == summarizeMaxTokens &&
			len(req.System) == 1 && req.System[0].CacheControl != nil &&
			req.Messages[0].Content == "Aeron review: 4.6/5 from 1,200 buyers."
	})).Return(textResponse("  Rated 4.6/5 by 1,200 buyers.\n"), nil).Once()

	s := NewSummarizer(client, AnthropicConfig{Model: "claude-custom", Retry: fastRetry()})
	summary, err := s.Summarize(context.Background(), "Aeron review: 4.6/5 from 1,200 buyers.")

	require.NoError(t, err)
	assert.Equal(t, "Rated 4.6/5 by 1,200 buyers.", summary)
}

func TestSummarizer_BlankContentSkipsModel(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)

	summary, err := NewSummarizer(client, AnthropicConfig{}).Summarize(context.Background(), "\n\t ")

	require.NoError(t, err)
	assert.Empty(t, summary)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSummarizer_Error(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 500, Message: "internal"}).Times(3)

	_, err := NewSummarizer(client, AnthropicConfig{Retry: fastRetry()}).Summarize(context.Background(), "content")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize")
	client.AssertNumberOfCalls(t, "CreateMessage", 3)
}
