package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the findly service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	ServiceName string `mapstructure:"service_name"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or text
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	return nil
}

// StorageConfig selects a backend per store and carries their connection settings.
type StorageConfig struct {
	Ledger    string         `mapstructure:"ledger"`    // memory, redis, postgres
	Documents string         `mapstructure:"documents"` // memory, postgres
	Sessions  string         `mapstructure:"sessions"`  // inmemory, redis
	Postgres  PostgresConfig `mapstructure:"postgres"`
	Redis     RedisConfig    `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.Ledger {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("storage.ledger must be memory, redis or postgres, got %q", s.Ledger)
	}
	switch s.Documents {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.documents must be memory or postgres, got %q", s.Documents)
	}
	switch s.Sessions {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("storage.sessions must be inmemory or redis, got %q", s.Sessions)
	}
	if s.UsesRedis() {
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	}
	if s.UsesPostgres() {
		if err := s.Postgres.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s StorageConfig) UsesRedis() bool { return s.Ledger == "redis" || s.Sessions == "redis" }

func (s StorageConfig) UsesPostgres() bool { return s.Ledger == "postgres" || s.Documents == "postgres" }

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	LedgerPrefix  string        `mapstructure:"ledger_prefix"`
	SessionPrefix string        `mapstructure:"session_prefix"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if r.SessionTTL < 0 {
		return fmt.Errorf("storage.redis.session_ttl must not be negative")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// FetchConfig configures page download and text extraction.
type FetchConfig struct {
	Type      string        `mapstructure:"type"` // http or chromedp
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

// IngestConfig controls chunking and embedding of new page versions.
type IngestConfig struct {
	ChunkSize            int           `mapstructure:"chunk_size"`
	ChunkOverlap         int           `mapstructure:"chunk_overlap"`
	EmbeddingBatchSize   int           `mapstructure:"embedding_batch_size"`
	EmbeddingConcurrency int           `mapstructure:"embedding_concurrency"`
	StoreRetries         uint64        `mapstructure:"store_retries"`
	StoreRetryMaxElapsed time.Duration `mapstructure:"store_retry_max_elapsed"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if i.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("ingest.embedding_batch_size must be > 0")
	}
	return nil
}

// RetrievalConfig controls candidate search and reranking.
type RetrievalConfig struct {
	CandidateCount int `mapstructure:"candidate_count"`
	TopK           int `mapstructure:"top_k"`
	QueryCacheSize int `mapstructure:"query_cache_size"`
}

func (r RetrievalConfig) Validate() error {
	if r.CandidateCount <= 0 {
		return fmt.Errorf("retrieval.candidate_count must be > 0")
	}
	if r.TopK <= 0 || r.TopK > r.CandidateCount {
		return fmt.Errorf("retrieval.top_k must be in [1, candidate_count]")
	}
	return nil
}

// ProvidersConfig names the model backend for each capability.
type ProvidersConfig struct {
	Embedding ProviderConfig `mapstructure:"embedding"`
	Reranker  ProviderConfig `mapstructure:"reranker"`
	LLM       ProviderConfig `mapstructure:"llm"`
}

// ProviderConfig represents a single model provider configuration
type ProviderConfig struct {
	Type        string        `mapstructure:"type"` // openai, voyage, lexical
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (p ProvidersConfig) Validate() error {
	for name, pc := range map[string]ProviderConfig{"embedding": p.Embedding, "reranker": p.Reranker, "llm": p.LLM} {
		if strings.TrimSpace(pc.Type) == "" {
			return fmt.Errorf("providers.%s.type required", name)
		}
	}
	return nil
}

// SecretsConfig points at the secret document loaded at startup.
type SecretsConfig struct {
	Backend string `mapstructure:"backend"` // env, file or none
	Dir     string `mapstructure:"dir"`
	Name    string `mapstructure:"name"`
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.service_name", "findly")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("storage.ledger", "memory")
	v.SetDefault("storage.documents", "memory")
	v.SetDefault("storage.sessions", "inmemory")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.migrations_path", "file://migrations")
	v.SetDefault("fetch.type", "http")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("ingest.chunk_size", 500)
	v.SetDefault("ingest.chunk_overlap", 250)
	v.SetDefault("ingest.embedding_batch_size", 64)
	v.SetDefault("ingest.embedding_concurrency", 4)
	v.SetDefault("ingest.store_retries", 4)
	v.SetDefault("ingest.store_retry_max_elapsed", 15*time.Second)
	v.SetDefault("retrieval.candidate_count", 20)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.query_cache_size", 1024)
	v.SetDefault("providers.embedding.type", "voyage")
	v.SetDefault("providers.embedding.model", "voyage-3")
	v.SetDefault("providers.reranker.type", "voyage")
	v.SetDefault("providers.reranker.model", "rerank-2")
	v.SetDefault("providers.llm.type", "openai")
	v.SetDefault("providers.llm.model", "gpt-4o")
	v.SetDefault("providers.llm.temperature", 0)
	// keys without a natural default are registered so FINDLY_* env vars reach them
	for _, key := range []string{
		"storage.postgres.url", "storage.postgres.host", "storage.postgres.user",
		"storage.postgres.password", "storage.postgres.dbname",
		"storage.redis.host", "storage.redis.password",
		"providers.embedding.api_key", "providers.reranker.api_key", "providers.llm.api_key",
		"secrets.dir", "telemetry.otlp_endpoint",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("secrets.backend", "env")
	v.SetDefault("secrets.name", "findly")
}

// LoadConfig reads the JSON config file at path, or searches the usual
// locations when path is empty, and overlays FINDLY_* environment variables.
// A missing file is not an error when searching; defaults and env still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./app/config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("FINDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section. It runs after secrets are applied because
// some required values only arrive from the secret document.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.Server, c.Storage, c.Ingest, c.Retrieval, c.Providers,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
