// Package store is the Postgres backend for the version ledger and the
// pgvector document store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/findly/internal/apperr"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a connection pool and checks that the database answers.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, apperr.Config("store.open", errors.New("postgres dsn is empty"))
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperr.StorageUnavailable("store.open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperr.StorageUnavailable("store.ping", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return apperr.StorageUnavailable("store.ping", err)
	}
	return nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Versions returns the ledger view of the store.
func (s *Store) Versions() *Versions { return &Versions{db: s.DB} }

// Chunks returns the document store view of the store.
func (s *Store) Chunks() *Chunks { return &Chunks{db: s.DB} }

func storageErr(op string, err error) error {
	return apperr.StorageUnavailable(op, fmt.Errorf("postgres: %w", err))
}
