package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mohammad-safakhou/findly/internal/apperr"
)

// Secret keys read from the secret document.
const (
	SecretOpenAIAPIKey        = "OPENAI_API_KEY"
	SecretVoyageAPIKey        = "VOYAGE_API_KEY"
	SecretDatabaseURL         = "DATABASE_URL"
	SecretRedisPassword       = "REDIS_PASSWORD"
	SecretContentHashTable    = "CONTENT_HASH_TABLE_NAME"
	SecretSessionHistoryTable = "SESSION_ID_HISTORY_TABLE_NAME"
)

// SecretProvider returns a named secret document as flat key/value pairs.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// EnvSecrets reads FINDLY_SECRET_<KEY> variables. The document name is ignored.
type EnvSecrets struct {
	Environ func() []string
}

const envSecretPrefix = "FINDLY_SECRET_"

func (e EnvSecrets) GetSecret(_ context.Context, _ string) (map[string]string, error) {
	environ := e.Environ
	if environ == nil {
		environ = os.Environ
	}
	out := map[string]string{}
	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envSecretPrefix) {
			continue
		}
		out[strings.TrimPrefix(k, envSecretPrefix)] = v
	}
	return out, nil
}

// FileSecrets reads <Dir>/<name>.json, a flat JSON object.
type FileSecrets struct {
	Dir string
}

func (f FileSecrets) GetSecret(_ context.Context, name string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(f.Dir, name+".json"))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read secret %q: %w", name, err)
	}
	out := map[string]string{}
	for k, val := range v.AllSettings() {
		if _, nested := val.(map[string]interface{}); nested {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(val)
	}
	return out, nil
}

func NewSecretProvider(cfg SecretsConfig) (SecretProvider, error) {
	switch cfg.Backend {
	case "env", "":
		return EnvSecrets{}, nil
	case "file":
		if strings.TrimSpace(cfg.Dir) == "" {
			return nil, errors.New("secrets.dir required for the file backend")
		}
		return FileSecrets{Dir: cfg.Dir}, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Backend)
}

// LoadSecrets fetches the configured secret document and applies it. Any
// failure is a config error; the service must not start without its secrets.
func (c *Config) LoadSecrets(ctx context.Context, provider SecretProvider) error {
	if provider == nil {
		return nil
	}
	secrets, err := provider.GetSecret(ctx, c.Secrets.Name)
	if err != nil {
		return apperr.Config("config.load_secrets", err)
	}
	c.ApplySecrets(secrets)
	return nil
}

// ApplySecrets fills settings that the config file left empty.
func (c *Config) ApplySecrets(secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" && secrets[key] != "" {
			*dst = secrets[key]
		}
	}
	for _, p := range []*ProviderConfig{&c.Providers.Embedding, &c.Providers.Reranker, &c.Providers.LLM} {
		switch p.Type {
		case "openai":
			fill(&p.APIKey, SecretOpenAIAPIKey)
		case "voyage":
			fill(&p.APIKey, SecretVoyageAPIKey)
		}
	}
	fill(&c.Storage.Postgres.URL, SecretDatabaseURL)
	fill(&c.Storage.Redis.Password, SecretRedisPassword)
	fill(&c.Storage.Redis.LedgerPrefix, SecretContentHashTable)
	fill(&c.Storage.Redis.SessionPrefix, SecretSessionHistoryTable)
}
