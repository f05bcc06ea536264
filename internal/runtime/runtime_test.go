package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mohammad-safakhou/findly/config"
	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/retriever"
)

func TestBuildPostgresDSN(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Postgres = config.PostgresConfig{Host: "db", User: "findly", Password: "p@ss", DBName: "pages"}
	dsn, err := BuildPostgresDSN(cfg)
	if err != nil {
		t.Fatalf("BuildPostgresDSN: %v", err)
	}
	if dsn != "postgres://findly:p%40ss@db:5432/pages?sslmode=disable" {
		t.Fatalf("unexpected dsn: %s", dsn)
	}

	cfg.Storage.Postgres.URL = "postgres://explicit"
	if dsn, _ := BuildPostgresDSN(cfg); dsn != "postgres://explicit" {
		t.Fatalf("url should win, got %s", dsn)
	}

	_, err = BuildPostgresDSN(&config.Config{})
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.GeneralConfig{ServiceName: "findly", LogLevel: "warn", LogFormat: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["msg"] != "shown" || rec["service"] != "findly" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage = config.StorageConfig{Ledger: "memory", Documents: "memory", Sessions: "inmemory"}
	cfg.Ingest = config.IngestConfig{ChunkSize: 500, ChunkOverlap: 250, EmbeddingBatchSize: 64, EmbeddingConcurrency: 2, StoreRetries: 1}
	cfg.Retrieval = config.RetrievalConfig{CandidateCount: 20, TopK: 5, QueryCacheSize: 16}
	cfg.Providers = config.ProvidersConfig{
		Embedding: config.ProviderConfig{Type: "voyage", APIKey: "k", Model: "voyage-3"},
		Reranker:  config.ProviderConfig{Type: "lexical"},
		LLM:       config.ProviderConfig{Type: "openai", APIKey: "k", Model: "gpt-4o"},
	}
	cfg.Fetch = config.FetchConfig{Type: "http"}
	return cfg
}

func TestBuildWithMemoryBackends(t *testing.T) {
	c, err := Build(context.Background(), memoryConfig(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	if c.Pipeline == nil || c.Retriever == nil || c.Conversations == nil {
		t.Fatalf("components not wired: %+v", c)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	_, err = c.Retriever.Answer(context.Background(), retriever.Request{URL: "http://never.example", Query: "q"})
	if !errors.Is(err, retriever.ErrNotIndexed) {
		t.Fatalf("expected not indexed on an empty ledger, got %v", err)
	}
}

func TestBuildMissingAPIKeyIsConfigError(t *testing.T) {
	cfg := memoryConfig()
	cfg.Providers.LLM.APIKey = ""
	c, err := Build(context.Background(), cfg, nil)
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no container on failure, got %+v", c)
	}
}

func TestBuildFailureClosesRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := memoryConfig()
	cfg.Storage.Ledger = "redis"
	cfg.Storage.Redis = config.RedisConfig{Host: mr.Host(), Port: mr.Port(), Timeout: time.Second}
	cfg.Providers.LLM.APIKey = ""

	c, err := Build(context.Background(), cfg, nil)
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no container on failure, got %+v", c)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mr.CurrentConnectionCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("redis connection left open after failed build: %d", mr.CurrentConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBuildUnknownDocumentStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Documents = "qdrant"
	_, err := Build(context.Background(), cfg, nil)
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
