// Package migrations embeds the account schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded migrations to one database.
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator for the database at dsn.
//
// Precondition: dsn must be a postgres:// URL; logger must be non-nil.
func New(dsn string, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

// Up applies all pending migrations, or n of them when n > 0.
//
// Postcondition: Returns nil when the schema is already current.
func (m *Migrator) Up(n int) error {
	var err error
	if n > 0 {
		err = m.migrate.Steps(n)
	} else {
		err = m.migrate.Up()
	}
	return m.finish("up", err)
}

// Down reverts all migrations, or n of them when n > 0.
func (m *Migrator) Down(n int) error {
	var err error
	if n > 0 {
		err = m.migrate.Steps(-n)
	} else {
		err = m.migrate.Down()
	}
	return m.finish("down", err)
}

func (m *Migrator) finish(direction string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		version, dirty, _ := m.Version()
		m.logger.Info("schema unchanged",
			zap.String("direction", direction),
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrating %s: %w", direction, err)
	}
	version, dirty, _ := m.Version()
	m.logger.Info("schema migrated",
		zap.String("direction", direction),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version returns the current schema version. A database with no applied
// migrations reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
