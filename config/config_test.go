package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammad-safakhou/findly/internal/apperr"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{}`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 250 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Ingest)
	}
	if cfg.Retrieval.CandidateCount != 20 || cfg.Retrieval.TopK != 5 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Providers.LLM.Model != "gpt-4o" || cfg.Providers.LLM.Temperature != 0 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.Providers.LLM)
	}
	if cfg.Fetch.Timeout != 15*time.Second {
		t.Fatalf("unexpected fetch timeout: %v", cfg.Fetch.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{
  "server": {"address": ":9000"},
  "storage": {"ledger": "redis", "sessions": "redis", "redis": {"host": "cache", "session_ttl": "24h"}},
  "retrieval": {"top_k": 3}
}`)
	t.Setenv("FINDLY_RETRIEVAL_CANDIDATE_COUNT", "30")
	t.Setenv("FINDLY_PROVIDERS_LLM_API_KEY", "sk-env")

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":9000" || cfg.Retrieval.TopK != 3 {
		t.Fatalf("file values not applied: %+v %+v", cfg.Server, cfg.Retrieval)
	}
	if cfg.Retrieval.CandidateCount != 30 {
		t.Fatalf("env override not applied: %d", cfg.Retrieval.CandidateCount)
	}
	if cfg.Providers.LLM.APIKey != "sk-env" {
		t.Fatalf("env api key not applied")
	}
	if cfg.Storage.Redis.SessionTTL != 24*time.Hour || cfg.Storage.Redis.Port != "6379" {
		t.Fatalf("unexpected redis config: %+v", cfg.Storage.Redis)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{}`)
	base, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cases := map[string]func(c *Config){
		"overlap too large":  func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize },
		"top_k over pool":    func(c *Config) { c.Retrieval.TopK = c.Retrieval.CandidateCount + 1 },
		"unknown ledger":     func(c *Config) { c.Storage.Ledger = "dynamo" },
		"redis without host": func(c *Config) { c.Storage.Sessions = "redis" },
		"postgres no dbname": func(c *Config) { c.Storage.Documents = "postgres"; c.Storage.Postgres.Host = "db" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvSecrets(t *testing.T) {
	p := EnvSecrets{Environ: func() []string {
		return []string{"FINDLY_SECRET_OPENAI_API_KEY=sk-1", "PATH=/bin", "FINDLY_SECRET_DATABASE_URL=postgres://x"}
	}}
	got, err := p.GetSecret(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if len(got) != 2 || got["OPENAI_API_KEY"] != "sk-1" || got["DATABASE_URL"] != "postgres://x" {
		t.Fatalf("unexpected secrets: %v", got)
	}
}

func TestFileSecretsAndApply(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "findly.json", `{"VOYAGE_API_KEY": "pa-1", "OPENAI_API_KEY": "sk-2", "CONTENT_HASH_TABLE_NAME": "versions"}`)
	cfgPath := writeFile(t, t.TempDir(), "config.json", `{"providers": {"reranker": {"type": "voyage", "api_key": "explicit"}}}`)

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.LoadSecrets(context.Background(), FileSecrets{Dir: dir}); err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if cfg.Providers.Embedding.APIKey != "pa-1" {
		t.Fatalf("voyage key not applied to embedding: %q", cfg.Providers.Embedding.APIKey)
	}
	if cfg.Providers.Reranker.APIKey != "explicit" {
		t.Fatalf("explicit config value overwritten")
	}
	if cfg.Providers.LLM.APIKey != "sk-2" {
		t.Fatalf("openai key not applied to llm")
	}
	if cfg.Storage.Redis.LedgerPrefix != "versions" {
		t.Fatalf("ledger namespace not applied: %q", cfg.Storage.Redis.LedgerPrefix)
	}
}

type failingSecrets struct{}

func (failingSecrets) GetSecret(context.Context, string) (map[string]string, error) {
	return nil, errors.New("access denied")
}

func TestLoadSecretsFailureIsConfigError(t *testing.T) {
	cfg := &Config{}
	err := cfg.LoadSecrets(context.Background(), failingSecrets{})
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
