package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/product-research/internal/model"
)

const visionMaxTokens = 16

var answerIndexRe = regexp.MustCompile(`\d+`)

// VisionImageSelector shows candidate images to a vision model and asks it
// to pick the one that best represents the product.
type VisionImageSelector struct {
	client        *openai.Client
	cfg           OpenAIConfig
	maxCandidates int
}

// NewVisionImageSelector creates a VisionImageSelector. A non-positive
// maxCandidates uses DefaultMaxImageCandidates.
func NewVisionImageSelector(cfg OpenAIConfig, maxCandidates int) *VisionImageSelector {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = visionMaxTokens
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxImageCandidates
	}
	return &VisionImageSelector{client: newOpenAIClient(cfg), cfg: cfg, maxCandidates: maxCandidates}
}

// SelectBestImage returns the chosen image, or nil when there are no
// candidates or the model finds none suitable.
func (v *VisionImageSelector) SelectBestImage(ctx context.Context, images []model.Image, productName string) (*model.Image, error) {
	if len(images) == 0 {
		return nil, nil
	}
	candidates := images
	if len(candidates) > v.maxCandidates {
		candidates = candidates[:v.maxCandidates]
	}

	answer, err := createChatCompletion(ctx, v.client, v.cfg.Retry, openai.ChatCompletionRequest{
		Model:     v.cfg.Model,
		MaxTokens: v.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: visionParts(candidates, productName),
		}},
	}, "select_image")
	if err != nil {
		return nil, err
	}

	idx, ok := parseImageAnswer(answer, len(candidates))
	if !ok {
		zap.L().Debug("llm: no suitable image",
			zap.String("product", productName),
			zap.String("answer", answer),
		)
		return nil, nil
	}
	chosen := candidates[idx]
	return &chosen, nil
}

func visionParts(candidates []model.Image, productName string) []openai.ChatMessagePart {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The following %d images were found on web pages about %q.\n", len(candidates), productName)
	sb.WriteString("Pick the single image that best shows the product itself: a clear product photo, not a logo, banner, person or unrelated item.\n")
	sb.WriteString("Answer with the image number only, or \"none\" if no image shows the product.\n\n")
	for i, img := range candidates {
		fmt.Fprintf(&sb, "%d. alt=%q source=%s\n", i+1, img.Alt, img.SourceURL)
	}

	parts := make([]openai.ChatMessagePart, 0, len(candidates)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: sb.String()})
	for _, img := range candidates {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img.URL, Detail: openai.ImageURLDetailLow},
		})
	}
	return parts
}

// parseImageAnswer maps a 1-based answer onto a candidate index. An answer
// of just "none" or one without a number in range selects nothing.
func parseImageAnswer(answer string, n int) (int, bool) {
	if strings.EqualFold(strings.Trim(strings.TrimSpace(answer), ".!\"'`"), "none") {
		return 0, false
	}
	m := answerIndexRe.FindString(answer)
	if m == "" {
		return 0, false
	}
	i, err := strconv.Atoi(m)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// FirstImageSelector picks the first candidate. Candidates arrive ranked by
// search order and product-name match, so the first is the best guess
// without a vision model.
type FirstImageSelector struct{}

// SelectBestImage returns the first image, or nil when there is none.
func (FirstImageSelector) SelectBestImage(_ context.Context, images []model.Image, _ string) (*model.Image, error) {
	if len(images) == 0 {
		return nil, nil
	}
	first := images[0]
	return &first, nil
}
