// Package docstore stores embedded page chunks and runs filtered similarity
// search over them.
package docstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/models"
)

// Filter restricts a search to one content version of one page. Both fields
// are matched exactly.
type Filter struct {
	URL         string
	ContentHash string
}

// Store is the document store adapter.
//
// Add writes one batch. Chunks are keyed by (url, content hash, ordinal) so
// writing the same batch twice leaves a single copy. Search returns at most
// topN chunks matching f, most similar first, with Rank starting at 1.
type Store interface {
	Add(ctx context.Context, chunks []models.DocumentChunk) error
	Search(ctx context.Context, vector []float32, f Filter, topN int) ([]models.ScoredChunk, error)
}

// ErrDimensionMismatch is reported as a model error: retrying the same
// vectors cannot succeed.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Memory keeps chunks in process and scores them by cosine similarity.
type Memory struct {
	mu     sync.RWMutex
	chunks map[string]models.DocumentChunk
	dim    int
}

func NewMemory() *Memory {
	return &Memory{chunks: make(map[string]models.DocumentChunk)}
}

func (m *Memory) Add(_ context.Context, chunks []models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dim := m.dim
	for _, c := range chunks {
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return apperr.Model("docstore.add", ErrDimensionMismatch)
		}
	}
	m.dim = dim
	for _, c := range chunks {
		if _, ok := m.chunks[c.Key()]; ok {
			continue
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		m.chunks[c.Key()] = c
	}
	return nil
}

func (m *Memory) Search(_ context.Context, vector []float32, f Filter, topN int) ([]models.ScoredChunk, error) {
	if topN <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []models.ScoredChunk
	for _, c := range m.chunks {
		if c.URL != f.URL || c.ContentHash != f.ContentHash {
			continue
		}
		hits = append(hits, models.ScoredChunk{DocumentChunk: c, Score: cosine(vector, c.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// Len reports how many chunks are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
