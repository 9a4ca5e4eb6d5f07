package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/recgraph/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the schema at databaseURL up to date. Migrations are read
// from path when set and from the embedded set otherwise.
func Migrate(databaseURL string, path string) error {
	m, err := newMigrate(databaseURL, path)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info("[DB] Schema up to date", "version", version, "dirty", dirty)
	return nil
}

func newMigrate(databaseURL string, path string) (*migrate.Migrate, error) {
	if path != "" {
		return migrate.New(sourceURL(path), databaseURL)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

func sourceURL(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
