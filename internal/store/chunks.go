package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/docstore"
	"github.com/mohammad-safakhou/findly/models"
)

var _ docstore.Store = (*Chunks)(nil)

// Chunks implements docstore.Store on the document_chunks table.
type Chunks struct {
	db *sql.DB
}

// Add writes the batch in one transaction. Rows already present for the same
// (url, content_hash, ordinal) are left alone, so a retried batch is a no-op.
func (c *Chunks) Add(ctx context.Context, chunks []models.DocumentChunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("docstore.add", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = storageErr("docstore.add", cerr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (url, content_hash, ordinal, content, embedding)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (url, content_hash, ordinal) DO NOTHING
`)
	if err != nil {
		return storageErr("docstore.add", err)
	}
	defer stmt.Close()
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return apperr.Model("docstore.add", fmt.Errorf("chunk %s has no embedding", ch.Key()))
		}
		if _, err = stmt.ExecContext(ctx, ch.URL, ch.ContentHash, ch.Ordinal, ch.Text, pgvector.NewVector(ch.Embedding)); err != nil {
			return addErr(err)
		}
	}
	return nil
}

// addErr reports pgvector's dimension check as a mismatch so it is not
// retried. It raises SQLSTATE 22000 "expected N dimensions, not M".
func addErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22000" && strings.Contains(pqErr.Message, "dimensions") {
		return apperr.Model("docstore.add", fmt.Errorf("%w: %s", docstore.ErrDimensionMismatch, pqErr.Message))
	}
	return storageErr("docstore.add", err)
}

// Search ranks by cosine distance within one content version. Score is
// reported as similarity (1 - distance).
func (c *Chunks) Search(ctx context.Context, vector []float32, f docstore.Filter, topN int) ([]models.ScoredChunk, error) {
	if topN <= 0 || len(vector) == 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx, `
SELECT ordinal, content, embedding <=> $1 AS distance
FROM document_chunks
WHERE url=$2 AND content_hash=$3
ORDER BY embedding <=> $1, ordinal
LIMIT $4
`, pgvector.NewVector(vector), f.URL, f.ContentHash, topN)
	if err != nil {
		return nil, storageErr("docstore.search", err)
	}
	defer rows.Close()
	var out []models.ScoredChunk
	for rows.Next() {
		var (
			hit      models.ScoredChunk
			distance float64
		)
		if err := rows.Scan(&hit.Ordinal, &hit.Text, &distance); err != nil {
			return nil, storageErr("docstore.search", err)
		}
		hit.URL = f.URL
		hit.ContentHash = f.ContentHash
		hit.Score = 1 - distance
		hit.Rank = len(out) + 1
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("docstore.search", err)
	}
	return out, nil
}
