package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mohammad-safakhou/findly/internal/apperr"
)

// Migrate applies the schema migrations found at source, for example
// file://migrations. steps of 0 means all of them. An already current
// schema is not an error.
func Migrate(source, dsn, direction string, steps int) error {
	if source == "" {
		source = "file://migrations"
	}
	if dsn == "" {
		return apperr.Config("store.migrate", errors.New("postgres dsn is empty"))
	}
	m, err := migrate.New(source, dsn)
	if err != nil {
		return apperr.StorageUnavailable("store.migrate", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperr.StorageUnavailable("store.migrate", err)
	}
	return nil
}
