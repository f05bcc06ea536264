package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mohammad-safakhou/findly/internal/ledger"
	"github.com/mohammad-safakhou/findly/models"
)

var _ ledger.Ledger = (*Versions)(nil)

// Versions implements ledger.Ledger on the content_versions table.
type Versions struct {
	db *sql.DB
}

func (v *Versions) RecordSeen(ctx context.Context, url, hash string, at time.Time) error {
	_, err := v.db.ExecContext(ctx, `
INSERT INTO content_versions (url, content_hash, last_retrieved)
VALUES ($1,$2,$3)
ON CONFLICT (url, content_hash) DO UPDATE SET last_retrieved = EXCLUDED.last_retrieved
`, url, hash, ledger.Normalize(at))
	if err != nil {
		return storageErr("ledger.record_seen", err)
	}
	return nil
}

func (v *Versions) Exists(ctx context.Context, url, hash string) (bool, error) {
	var one int
	err := v.db.QueryRowContext(ctx, `SELECT 1 FROM content_versions WHERE url=$1 AND content_hash=$2`, url, hash).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, storageErr("ledger.exists", err)
	}
	return true, nil
}

func (v *Versions) LatestAsOf(ctx context.Context, url string, at time.Time) (models.ContentVersion, bool, error) {
	out := models.ContentVersion{URL: url}
	err := v.db.QueryRowContext(ctx, `
SELECT content_hash, last_retrieved
FROM content_versions
WHERE url=$1 AND last_retrieved <= $2
ORDER BY last_retrieved DESC
LIMIT 1
`, url, ledger.Normalize(at)).Scan(&out.ContentHash, &out.LastRetrieved)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.ContentVersion{}, false, nil
	case err != nil:
		return models.ContentVersion{}, false, storageErr("ledger.latest_as_of", err)
	}
	out.LastRetrieved = out.LastRetrieved.UTC()
	return out, true, nil
}
