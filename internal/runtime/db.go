package runtime

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/mohammad-safakhou/findly/config"
	"github.com/mohammad-safakhou/findly/internal/apperr"
)

// BuildPostgresDSN returns storage.postgres.url when set, otherwise a DSN
// assembled from the individual fields.
func BuildPostgresDSN(cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", apperr.Config("runtime.dsn", errors.New("config is nil"))
	}
	p := cfg.Storage.Postgres
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", apperr.Config("runtime.dsn", errors.New("postgres configuration incomplete: host/dbname required"))
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%s", p.Host, port),
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String(), nil
}
