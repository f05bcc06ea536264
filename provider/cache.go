package provider

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes query embeddings. Document embeddings pass through
// uncached since each document version is embedded once.
type CachedEmbedder struct {
	Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder returns e unchanged when size is not positive.
func NewCachedEmbedder(e Embedder, size int) (Embedder, error) {
	if size <= 0 {
		return e, nil
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{Embedder: e, cache: cache}, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := EmbedQuery(ctx, c.Embedder, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}
