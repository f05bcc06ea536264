package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/findly/config"
	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
	"github.com/mohammad-safakhou/findly/provider/lexical"
	openai_provider "github.com/mohammad-safakhou/findly/provider/openai"
	"github.com/mohammad-safakhou/findly/provider/voyage"
)

// Client names a model backend
type Client string

const (
	OpenAI  Client = "openai"
	Voyage  Client = "voyage"
	Lexical Client = "lexical"
)

const defaultTimeout = 60 * time.Second

// Embedder turns document texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder is implemented by embedders that encode search queries
// differently from documents.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores docs against query and returns at most topK results,
// highest score first. Index refers to the position in docs.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string, topK int) ([]models.RerankResult, error)
}

// LLM produces a chat completion.
type LLM interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// EmbedQuery uses the query-specific path when e has one.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if qe, ok := e.(QueryEmbedder); ok {
		return qe.EmbedQuery(ctx, text)
	}
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperr.Model("embed_query", fmt.Errorf("expected 1 vector, got %d", len(vecs)))
	}
	return vecs[0], nil
}

func timeoutOf(cfg config.ProviderConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return defaultTimeout
}

func requireKey(cfg config.ProviderConfig, capability string) error {
	if cfg.APIKey == "" {
		return apperr.Config("provider."+capability, fmt.Errorf("%s api key not set", cfg.Type))
	}
	return nil
}

// NewEmbedder creates the embedding backend named in cfg
func NewEmbedder(cfg config.ProviderConfig) (Embedder, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		if err := requireKey(cfg, "embedding"); err != nil {
			return nil, err
		}
		return openai_provider.NewOpenAIClient(openai_provider.Options{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.Model,
			Timeout:        timeoutOf(cfg),
		}), nil
	case Voyage:
		if err := requireKey(cfg, "embedding"); err != nil {
			return nil, err
		}
		return voyage.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, timeoutOf(cfg)), nil
	}
	return nil, apperr.Config("provider.embedding", fmt.Errorf("unsupported embedding provider %q", cfg.Type))
}

// NewReranker creates the reranking backend named in cfg
func NewReranker(cfg config.ProviderConfig) (Reranker, error) {
	switch Client(cfg.Type) {
	case Voyage:
		if err := requireKey(cfg, "reranker"); err != nil {
			return nil, err
		}
		return voyage.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, timeoutOf(cfg)), nil
	case Lexical:
		return lexical.NewReranker(), nil
	}
	return nil, apperr.Config("provider.reranker", fmt.Errorf("unsupported reranker provider %q", cfg.Type))
}

// NewLLM creates the chat completion backend named in cfg
func NewLLM(cfg config.ProviderConfig) (LLM, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		if err := requireKey(cfg, "llm"); err != nil {
			return nil, err
		}
		return openai_provider.NewOpenAIClient(openai_provider.Options{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			CompletionModel: cfg.Model,
			Temperature:     cfg.Temperature,
			MaxTokens:       cfg.MaxTokens,
			Timeout:         timeoutOf(cfg),
		}), nil
	case "":
		return nil, apperr.Config("provider.llm", errors.New("llm provider not configured"))
	}
	return nil, apperr.Config("provider.llm", fmt.Errorf("unsupported llm provider %q", cfg.Type))
}
