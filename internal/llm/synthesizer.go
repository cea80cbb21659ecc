package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/product-research/internal/schema"
	"github.com/sells-group/product-research/pkg/anthropic"
)

const synthesizeMaxTokens = 4096

const synthesizeSystemPrompt = `You produce structured product records as a single JSON object.
The object must conform to this JSON schema:

%s

Answer with the JSON object only. Do not wrap it in markdown or add commentary.
Use empty strings, zero values or empty arrays for anything the input does not state.`

// AnthropicSynthesizer generates schema-shaped JSON with Claude. The schema
// is embedded in a cached system prompt.
type AnthropicSynthesizer struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicSynthesizer creates an AnthropicSynthesizer. The default model
// is Sonnet.
func NewAnthropicSynthesizer(client anthropic.Client, cfg AnthropicConfig) *AnthropicSynthesizer {
	return &AnthropicSynthesizer{client: client, cfg: cfg.withDefaults(DefaultSynthesisModel, synthesizeMaxTokens)}
}

// Synthesize answers prompt with a JSON document shaped by target. The
// result is syntactically valid JSON; schema conformance is left to the
// caller.
func (s *AnthropicSynthesizer) Synthesize(ctx context.Context, prompt string, target *schema.Schema) (json.RawMessage, error) {
	if target == nil {
		return nil, eris.New("llm: synthesize: nil schema")
	}

	temp := 0.0
	text, err := createMessage(ctx, s.client, s.cfg.Retry, anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		System:      anthropic.CachedSystem(fmt.Sprintf(synthesizeSystemPrompt, target.JSON()), "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}, "synthesize")
	if err != nil {
		return nil, err
	}
	return validJSON(text)
}

// OpenAISynthesizer generates schema-shaped JSON through an OpenAI-compatible
// endpoint using strict json_schema response formatting.
type OpenAISynthesizer struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAISynthesizer creates an OpenAISynthesizer.
func NewOpenAISynthesizer(cfg OpenAIConfig) *OpenAISynthesizer {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = synthesizeMaxTokens
	}
	return &OpenAISynthesizer{client: newOpenAIClient(cfg), cfg: cfg}
}

// Synthesize answers prompt with a JSON document constrained by target.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, prompt string, target *schema.Schema) (json.RawMessage, error) {
	if target == nil {
		return nil, eris.New("llm: synthesize: nil schema")
	}

	text, err := createChatCompletion(ctx, s.client, s.cfg.Retry, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(synthesizeSystemPrompt, target.JSON())},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   target.Name,
				Schema: target.Definition,
				Strict: true,
			},
		},
	}, "synthesize")
	if err != nil {
		return nil, err
	}
	return validJSON(text)
}

func validJSON(text string) (json.RawMessage, error) {
	doc := cleanJSON(text)
	if !json.Valid([]byte(doc)) {
		return nil, eris.Wrapf(ErrInvalidJSON, "llm: synthesize: %s", truncateRunes(text, 200))
	}
	return json.RawMessage(doc), nil
}
