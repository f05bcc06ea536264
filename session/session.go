// Package session persists conversation histories keyed by session id.
package session

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/findly/models"
)

var ErrStaleRevision = errors.New("session was modified concurrently")

// History is the ordered list of turns for one session. Revision counts
// successful saves; zero means the session has never been saved.
type History struct {
	SessionID string
	Revision  int64
	Turns     []models.Turn
}

// Append returns a copy of h with turns added at the end.
func (h History) Append(turns ...models.Turn) History {
	out := h
	out.Turns = make([]models.Turn, 0, len(h.Turns)+len(turns))
	out.Turns = append(out.Turns, h.Turns...)
	out.Turns = append(out.Turns, turns...)
	return out
}

// Store loads and saves histories.
//
// Load returns an empty History with Revision 0 for an unknown id. Save
// succeeds only if h.Revision still matches the stored revision and returns
// the new revision; otherwise it fails with apperr.Conflict wrapping
// ErrStaleRevision. Backend failures are apperr.StorageUnavailable.
type Store interface {
	Load(ctx context.Context, sessionID string) (History, error)
	Save(ctx context.Context, h History) (int64, error)
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)
