package redis_repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/session"
)

const sessionKeyPrefix = "findly:session:"

const (
	fieldRevision = "revision"
	fieldHistory  = "history"
)

var _ session.Store = (*redisSessionRepository)(nil)

type redisSessionRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionRepository stores each history in a hash. A ttl of zero
// keeps sessions forever; otherwise every save pushes the expiry forward.
func NewRedisSessionRepository(client *redis.Client, prefix string, ttl time.Duration) session.Store {
	if prefix == "" {
		prefix = sessionKeyPrefix
	} else if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &redisSessionRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *redisSessionRepository) Load(ctx context.Context, sessionID string) (session.History, error) {
	fields, err := r.client.HGetAll(ctx, r.prefix+sessionID).Result()
	if err != nil {
		return session.History{}, apperr.StorageUnavailable("session.load", err)
	}
	h := session.History{SessionID: sessionID}
	if len(fields) == 0 {
		return h, nil
	}
	h.Revision, err = strconv.ParseInt(fields[fieldRevision], 10, 64)
	if err != nil {
		return session.History{}, apperr.StorageUnavailable("session.load", fmt.Errorf("bad revision: %w", err))
	}
	h.Turns, err = session.Decode([]byte(fields[fieldHistory]))
	if err != nil {
		return session.History{}, apperr.StorageUnavailable("session.load", err)
	}
	return h, nil
}

func (r *redisSessionRepository) Save(ctx context.Context, h session.History) (int64, error) {
	data, err := session.Encode(h.Turns)
	if err != nil {
		return 0, apperr.StorageUnavailable("session.save", err)
	}
	key := r.prefix + h.SessionID
	next := h.Revision + 1
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldRevision).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != h.Revision {
			return session.ErrStaleRevision
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fieldRevision, next, fieldHistory, data)
			if r.ttl > 0 {
				p.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, session.ErrStaleRevision), errors.Is(err, redis.TxFailedErr):
		return 0, apperr.Conflict("session.save", session.ErrStaleRevision)
	}
	return 0, apperr.StorageUnavailable("session.save", err)
}
