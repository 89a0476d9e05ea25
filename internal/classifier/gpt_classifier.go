package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var errEmptyCompletion = errors.New("empty completion")

type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewGPTClassifier creates an OpenAI-backed delegate. An empty baseURL uses
// the public API.
func NewGPTClassifier(apiKey, baseURL, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GPTClassifier{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (c *GPTClassifier) Classify(ctx context.Context, text string, labels []string) (string, error) {
	prompt := fmt.Sprintf(`Pick the single best category for the technical note below.

Existing categories:
%s

Answer with one category copied exactly from the list, or with %s if none fits.
Answer with nothing else.

Note: %s`, bulletList(labels), CreateNew, text)

	return c.complete(ctx, prompt)
}

func (c *GPTClassifier) ProposeLabel(ctx context.Context, text string, labels []string) (string, error) {
	prompt := fmt.Sprintf(`None of these categories fits the technical note below:
%s

Propose one new, short category name. Use "Parent > Child" only when the parent
is one of the existing categories. Answer with the name only.

Note: %s`, bulletList(labels), text)

	return c.complete(ctx, prompt)
}

// AnalyzeContent turns a raw message into a concept draft. Failures fall
// back to ParseDraft so the note is never lost.
func (c *GPTClassifier) AnalyzeContent(ctx context.Context, content string) models.ConceptDraft {
	prompt := fmt.Sprintf(`Analyze the following technical note and return a JSON object with this structure:
{
    "title": "short_title",
    "category": "broad_category",
    "summary": "one_paragraph_summary",
    "keyPoints": ["point1", "point2", ...],
    "confidenceScore": 0.0
}

Content: %s`, content)

	response, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		return ParseDraft(content)
	}

	var draft models.ConceptDraft
	if err := json.Unmarshal([]byte(stripFence(response)), &draft); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return ParseDraft(content)
	}

	fallback := ParseDraft(content)
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = fallback.Title
	}
	if strings.TrimSpace(draft.Category) == "" {
		draft.Category = fallback.Category
	}
	return draft
}

func (c *GPTClassifier) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

// stripFence removes a ```json fence some models wrap replies in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
