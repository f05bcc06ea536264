// Package lexical reranks candidates by BM25 relevance using a throwaway
// in-memory bleve index. It needs no network access.
package lexical

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
)

type Reranker struct{}

func NewReranker() *Reranker { return &Reranker{} }

type doc struct {
	Text string `json:"text"`
}

// Rerank orders docs by their match score for query. Docs that do not match
// at all keep their original relative order behind the matches.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string, topK int) ([]models.RerankResult, error) {
	if len(docs) == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > len(docs) {
		topK = len(docs)
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, apperr.Model("lexical.rerank", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, text := range docs {
		if err := batch.Index(strconv.Itoa(i), doc{Text: text}); err != nil {
			return nil, apperr.Model("lexical.rerank", err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, apperr.Model("lexical.rerank", err)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), len(docs), 0, false)
	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperr.Model("lexical.rerank", err)
	}

	out := make([]models.RerankResult, 0, topK)
	used := make(map[int]bool, topK)
	for _, hit := range res.Hits {
		if len(out) == topK {
			break
		}
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(docs) {
			return nil, apperr.Model("lexical.rerank", fmt.Errorf("unexpected hit id %q", hit.ID))
		}
		out = append(out, models.RerankResult{Index: i, Score: hit.Score})
		used[i] = true
	}
	for i := 0; i < len(docs) && len(out) < topK; i++ {
		if !used[i] {
			out = append(out, models.RerankResult{Index: i})
		}
	}
	return out, nil
}
