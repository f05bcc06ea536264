package openai_provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
)

const (
	defaultCompletionModel = "gpt-4o"
	defaultEmbeddingModel  = "text-embedding-3-small"
)

// client implements chat completions and embeddings on the OpenAI SDK
type client struct {
	sdk             openai.Client
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
}

type Options struct {
	APIKey          string
	BaseURL         string
	CompletionModel string
	EmbeddingModel  string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
	// MaxRetries is handed to the SDK. Zero disables its retries.
	MaxRetries int
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(opts Options) *client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	c := &client{
		sdk:             openai.NewClient(reqOpts...),
		completionModel: opts.CompletionModel,
		embeddingModel:  opts.EmbeddingModel,
		temperature:     opts.Temperature,
		maxTokens:       opts.MaxTokens,
	}
	if c.completionModel == "" {
		c.completionModel = defaultCompletionModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = defaultEmbeddingModel
	}
	return c
}

// Embed generates embeddings for the given texts
func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.sdk.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          openai.EmbeddingModel(c.embeddingModel),
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, apperr.Model("openai.embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperr.Model("openai.embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vecs := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Complete sends the conversation and returns the first choice
func (c *client) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.completionModel),
		Messages:    toMessages(messages),
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", apperr.Model("openai.complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Model("openai.complete", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toMessages(messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case string(models.RoleAssistant):
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
