package redis_repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/ledger"
	"github.com/mohammad-safakhou/findly/models"
)

const ledgerKeyPrefix = "findly:ledger:"

var _ ledger.Ledger = (*redisVersionRepository)(nil)

// redisVersionRepository keeps one sorted set per URL: member is the content
// hash, score is last_retrieved in unix microseconds.
type redisVersionRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisVersionRepository namespaces its keys under prefix, or under
// "findly:ledger:" when prefix is empty.
func NewRedisVersionRepository(client *redis.Client, prefix string) ledger.Ledger {
	if prefix == "" {
		prefix = ledgerKeyPrefix
	} else if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &redisVersionRepository{client: client, prefix: prefix}
}

func (r *redisVersionRepository) RecordSeen(ctx context.Context, url, hash string, at time.Time) error {
	err := r.client.ZAdd(ctx, r.prefix+url, redis.Z{Score: float64(ledger.Normalize(at).UnixMicro()), Member: hash}).Err()
	if err != nil {
		return apperr.StorageUnavailable("ledger.record_seen", err)
	}
	return nil
}

func (r *redisVersionRepository) Exists(ctx context.Context, url, hash string) (bool, error) {
	_, err := r.client.ZScore(ctx, r.prefix+url, hash).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, apperr.StorageUnavailable("ledger.exists", err)
	}
	return true, nil
}

func (r *redisVersionRepository) LatestAsOf(ctx context.Context, url string, at time.Time) (models.ContentVersion, bool, error) {
	hits, err := r.client.ZRevRangeByScoreWithScores(ctx, r.prefix+url, &redis.ZRangeBy{
		Max:    strconv.FormatInt(ledger.Normalize(at).UnixMicro(), 10),
		Min:    "-inf",
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return models.ContentVersion{}, false, apperr.StorageUnavailable("ledger.latest_as_of", err)
	}
	if len(hits) == 0 {
		return models.ContentVersion{}, false, nil
	}
	hash, _ := hits[0].Member.(string)
	return models.ContentVersion{
		URL:           url,
		ContentHash:   hash,
		LastRetrieved: time.UnixMicro(int64(hits[0].Score)).UTC(),
	}, true, nil
}
