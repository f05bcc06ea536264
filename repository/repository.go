package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/findly/internal/ledger"
	"github.com/mohammad-safakhou/findly/internal/store"
	"github.com/mohammad-safakhou/findly/repository/redis_repository"
	"github.com/mohammad-safakhou/findly/session"
	"github.com/mohammad-safakhou/findly/session/inmemory"
)

type RepoType string

const (
	RepoTypeMemory   RepoType = "memory"
	RepoTypeRedis    RepoType = "redis"
	RepoTypePostgres RepoType = "postgres"
)

// Clients carries the already-connected backends a repository may need.
type Clients struct {
	Redis    *redis.Client
	Postgres *store.Store

	LedgerPrefix  string
	SessionPrefix string
}

func NewLedger(_ context.Context, t RepoType, c Clients) (ledger.Ledger, error) {
	switch t {
	case RepoTypeMemory:
		return ledger.NewMemory(), nil
	case RepoTypeRedis:
		if c.Redis == nil {
			return nil, fmt.Errorf("ledger backend %q needs a redis client", t)
		}
		return redis_repository.NewRedisVersionRepository(c.Redis, c.LedgerPrefix), nil
	case RepoTypePostgres:
		if c.Postgres == nil {
			return nil, fmt.Errorf("ledger backend %q needs a postgres store", t)
		}
		return c.Postgres.Versions(), nil
	}
	return nil, fmt.Errorf("invalid ledger backend: %s", t)
}

func NewSessionStore(_ context.Context, t session.StoreType, c Clients, ttl time.Duration) (session.Store, error) {
	switch t {
	case session.InMemoryStore:
		return inmemory.NewInMemorySessionStore(), nil
	case session.RedisStore:
		if c.Redis == nil {
			return nil, fmt.Errorf("session backend %q needs a redis client", t)
		}
		return redis_repository.NewRedisSessionRepository(c.Redis, c.SessionPrefix, ttl), nil
	}
	return nil, fmt.Errorf("invalid session backend: %s", t)
}
