package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-research/internal/resilience"
	"github.com/sells-group/product-research/pkg/anthropic"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 10},
	}
}

// openAIServer serves chat completions. The handler returns the status and
// the assistant content for each request, which it receives decoded.
type openAIServer struct {
	calls atomic.Int32
	srv   *httptest.Server
}

func newOpenAIServer(t *testing.T, handle func(req map[string]any) (int, string)) *openAIServer {
	t.Helper()
	s := &openAIServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, content := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 50, "completion_tokens": 5, "total_tokens": 55},
		})
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *openAIServer) config() OpenAIConfig {
	return OpenAIConfig{APIKey: "test-key", BaseURL: s.srv.URL + "/v1", Retry: fastRetry()}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "anthropic 503", err: &anthropic.APIError{StatusCode: 503}, want: true},
		{name: "anthropic 400", err: &anthropic.APIError{StatusCode: 400}, want: false},
		{name: "openai api 429", err: &openai.APIError{HTTPStatusCode: 429}, want: true},
		{name: "openai api 401", err: &openai.APIError{HTTPStatusCode: 401}, want: false},
		{name: "openai request 502", err: &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(tt.err))
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"name":"Aeron"}`, want: `{"name":"Aeron"}`},
		{name: "json fence", input: "```json\n{\"name\":\"Aeron\"}\n```", want: `{"name":"Aeron"}`},
		{name: "bare fence", input: "```\n{\"name\":\"Aeron\"}\n```", want: `{"name":"Aeron"}`},
		{name: "prose around", input: "Here is the record:\n{\"name\":\"Aeron\"}\nHope this helps.", want: `{"name":"Aeron"}`},
		{name: "no object", input: "sorry", want: "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.input))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}
