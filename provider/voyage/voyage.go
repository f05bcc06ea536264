// Package voyage calls the Voyage AI embedding and rerank endpoints.
package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
)

const (
	DefaultBaseURL        = "https://api.voyageai.com/v1"
	DefaultEmbeddingModel = "voyage-3"
	DefaultRerankModel    = "rerank-2"
)

type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// NewClient serves both embeddings and reranking. Model is the embedding
// model for Embed and the rerank model for Rerank; leave it empty to use
// the defaults for each.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, "document")
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, "query")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := c.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	var out embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Input: texts, Model: model, InputType: inputType}, &out); err != nil {
		return nil, apperr.Model("voyage.embed", err)
	}
	if len(out.Data) != len(texts) {
		return nil, apperr.Model("voyage.embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Data)))
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Data []models.RerankResult `json:"data"`
}

func (c *Client) Rerank(ctx context.Context, query string, docs []string, topK int) ([]models.RerankResult, error) {
	if len(docs) == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > len(docs) {
		topK = len(docs)
	}
	model := c.Model
	if model == "" {
		model = DefaultRerankModel
	}
	var out rerankResponse
	if err := c.post(ctx, "/rerank", rerankRequest{Query: query, Documents: docs, Model: model, TopK: topK}, &out); err != nil {
		return nil, apperr.Model("voyage.rerank", err)
	}
	for _, r := range out.Data {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, apperr.Model("voyage.rerank", fmt.Errorf("result index %d out of range", r.Index))
		}
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Score > out.Data[j].Score })
	if len(out.Data) > topK {
		out.Data = out.Data[:topK]
	}
	return out.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
