package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending embedded migrations over an open connection.
// It is safe to call on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("acquire migration connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// NewMigrator builds a standalone migrator for the CLI. An empty sourcePath
// uses the embedded migrations; otherwise it is read as a directory.
func NewMigrator(sourcePath, databaseURL string) (*migrate.Migrate, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		src, err := iofs.New(migrationsFS, "migrations")
		if err != nil {
			return nil, fmt.Errorf("load migrations: %w", err)
		}
		return migrate.NewWithSourceInstance("iofs", src, databaseURL)
	}
	if !strings.Contains(sourcePath, "://") {
		sourcePath = "file://" + sourcePath
	}
	return migrate.New(sourcePath, databaseURL)
}
