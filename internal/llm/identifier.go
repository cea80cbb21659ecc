package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-research/pkg/anthropic"
)

const (
	identifyMaxTokens    = 64
	identifyMaxInputRune = 12000
)

const identifySystemPrompt = `You identify products from the text of a product web page.
Answer with the full product name only: brand, product line and model, as a shopper would search for it.
Do not add explanations, quotes, prices or punctuation around the name.
If the page does not describe a single product, answer with the most prominent product it describes.`

// Identifier derives a searchable product name from cleaned page content.
type Identifier struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewIdentifier creates an Identifier. The default model is Haiku.
func NewIdentifier(client anthropic.Client, cfg AnthropicConfig) *Identifier {
	return &Identifier{client: client, cfg: cfg.withDefaults(DefaultFastModel, identifyMaxTokens)}
}

// IdentifyName returns a single-line product name for content.
func (i *Identifier) IdentifyName(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", eris.New("llm: identify: empty content")
	}

	temp := 0.0
	text, err := createMessage(ctx, i.client, i.cfg.Retry, anthropic.MessageRequest{
		Model:       i.cfg.Model,
		MaxTokens:   i.cfg.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: identifySystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: truncateRunes(content, identifyMaxInputRune)}},
		Temperature: &temp,
	}, "identify")
	if err != nil {
		return "", err
	}

	name := cleanName(text)
	if name == "" {
		return "", eris.Wrap(ErrEmptyResponse, "llm: identify: no product name")
	}
	return name, nil
}

var namePrefixes = []string{"product name:", "product:", "name:"}

// cleanName keeps the first non-empty line of a model answer and strips
// labels, markdown emphasis and quotes.
func cleanName(text string) string {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	line = strings.TrimLeft(line, "#-* ")
	lower := strings.ToLower(line)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			line = line[len(p):]
			break
		}
	}
	line = strings.Trim(strings.TrimSpace(line), "*_`\"'“”‘’")
	line = strings.TrimSuffix(line, ".")
	return strings.TrimSpace(line)
}
