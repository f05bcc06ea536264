// Package runtime builds the long-lived service graph from configuration:
// storage clients, model providers and the ingestion and query components.
package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/findly/config"
	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/conversation"
	"github.com/mohammad-safakhou/findly/internal/docstore"
	"github.com/mohammad-safakhou/findly/internal/ledger"
	"github.com/mohammad-safakhou/findly/internal/metrics"
	"github.com/mohammad-safakhou/findly/internal/retriever"
	"github.com/mohammad-safakhou/findly/internal/store"
	"github.com/mohammad-safakhou/findly/provider"
	"github.com/mohammad-safakhou/findly/repository"
	"github.com/mohammad-safakhou/findly/repository/redis_repository"
	"github.com/mohammad-safakhou/findly/session"
	"github.com/mohammad-safakhou/findly/tools/web_fetch"
	"github.com/mohammad-safakhou/findly/tools/web_ingest"
)

// LoadConfig reads the config file, overlays the secret document and
// validates the result. Every failure is apperr.Config.
func LoadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, apperr.Config("runtime.load_config", err)
	}
	sp, err := config.NewSecretProvider(cfg.Secrets)
	if err != nil {
		return nil, apperr.Config("runtime.secrets", err)
	}
	if err := cfg.LoadSecrets(ctx, sp); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Config("runtime.validate", err)
	}
	return cfg, nil
}

// Container holds every component built once at startup and shared by all
// requests.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Postgres *store.Store
	Redis    *redis.Client

	Ledger        ledger.Ledger
	Documents     docstore.Store
	Sessions      session.Store
	Pipeline      *web_ingest.Pipeline
	Retriever     *retriever.Retriever
	Conversations *conversation.Manager
}

// Build connects to the configured backends and wires the components. On
// failure everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Container, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	cont := &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = cont.Close()
		}
	}()
	metrics.Register(prometheus.DefaultRegisterer)

	if cfg.Storage.UsesPostgres() {
		dsn, err := BuildPostgresDSN(cfg)
		if err != nil {
			return nil, err
		}
		if cont.Postgres, err = store.NewWithDSN(ctx, dsn); err != nil {
			return nil, err
		}
	}
	if cfg.Storage.UsesRedis() {
		r := cfg.Storage.Redis
		if cont.Redis, err = redis_repository.Conn(ctx, r.Host, r.Port, r.Password, r.DB, r.Timeout); err != nil {
			return nil, apperr.StorageUnavailable("runtime.redis", err)
		}
	}
	clients := repository.Clients{
		Redis:         cont.Redis,
		Postgres:      cont.Postgres,
		LedgerPrefix:  cfg.Storage.Redis.LedgerPrefix,
		SessionPrefix: cfg.Storage.Redis.SessionPrefix,
	}

	if cont.Ledger, err = repository.NewLedger(ctx, repository.RepoType(cfg.Storage.Ledger), clients); err != nil {
		return nil, apperr.Config("runtime.ledger", err)
	}
	if cont.Sessions, err = repository.NewSessionStore(ctx, session.StoreType(cfg.Storage.Sessions), clients, cfg.Storage.Redis.SessionTTL); err != nil {
		return nil, apperr.Config("runtime.sessions", err)
	}
	docs, err := newDocumentStore(cfg.Storage.Documents, cont.Postgres)
	if err != nil {
		return nil, err
	}
	policy := docstore.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Ingest.StoreRetries
	if cfg.Ingest.StoreRetryMaxElapsed > 0 {
		policy.MaxElapsedTime = cfg.Ingest.StoreRetryMaxElapsed
	}
	cont.Documents = docstore.WithRetry(docs, policy, logger)

	embedder, err := provider.NewEmbedder(cfg.Providers.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder, err = provider.NewCachedEmbedder(embedder, cfg.Retrieval.QueryCacheSize); err != nil {
		return nil, apperr.Config("runtime.query_cache", err)
	}
	reranker, err := provider.NewReranker(cfg.Providers.Reranker)
	if err != nil {
		return nil, err
	}
	llm, err := provider.NewLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Type), web_fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		MaxChars:  cfg.Fetch.MaxChars,
		UserAgent: cfg.Fetch.UserAgent,
	})
	if err != nil {
		return nil, apperr.Config("runtime.fetcher", err)
	}

	cont.Pipeline = web_ingest.NewPipeline(fetcher, embedder, cont.Documents, cont.Ledger, web_ingest.Options{
		Splitter:             web_ingest.Splitter{Size: cfg.Ingest.ChunkSize, Overlap: cfg.Ingest.ChunkOverlap},
		EmbeddingBatchSize:   cfg.Ingest.EmbeddingBatchSize,
		EmbeddingConcurrency: cfg.Ingest.EmbeddingConcurrency,
		Logger:               logger.With("component", "ingest"),
	})
	cont.Retriever = retriever.New(cont.Ledger, cont.Documents, embedder, reranker, llm, retriever.Options{
		CandidateCount: cfg.Retrieval.CandidateCount,
		TopK:           cfg.Retrieval.TopK,
		Logger:         logger.With("component", "retriever"),
	})
	cont.Conversations = conversation.NewManager(cont.Sessions, cont.Retriever, llm, logger.With("component", "conversation"))
	return cont, nil
}

func newDocumentStore(kind string, pg *store.Store) (docstore.Store, error) {
	switch kind {
	case "memory":
		return docstore.NewMemory(), nil
	case "postgres":
		if pg == nil {
			return nil, apperr.Config("runtime.documents", errors.New("postgres document store needs storage.postgres"))
		}
		return pg.Chunks(), nil
	}
	return nil, apperr.Config("runtime.documents", errors.New("unknown document store "+kind))
}

// Ping checks the connected storage backends.
func (c *Container) Ping(ctx context.Context) error {
	if c.Postgres != nil {
		if err := c.Postgres.Ping(ctx); err != nil {
			return err
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return apperr.StorageUnavailable("runtime.ping", err)
		}
	}
	return nil
}

func (c *Container) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Postgres != nil {
		errs = append(errs, c.Postgres.Close())
	}
	return errors.Join(errs...)
}
