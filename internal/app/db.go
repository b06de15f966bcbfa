package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/streetlift/meet-engine/internal/config"
	"github.com/streetlift/meet-engine/internal/infrastructure/repository/sqlite"
	"github.com/streetlift/meet-engine/migrations"
)

// InitLocalSchema creates or upgrades the single-file local store.
func InitLocalSchema(cfg config.Config, logger *slog.Logger) error {
	src, err := iofs.New(migrations.Local, "local")
	if err != nil {
		return fmt.Errorf("load local migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+cfg.LocalDBPath)
	if err != nil {
		return fmt.Errorf("create local migrator: %w", err)
	}
	defer closeMigrator(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply local migrations: %w", err)
	}

	logger.Info("local schema ready", "path", cfg.LocalDBPath)
	return nil
}

// InitArchiveSchema creates or upgrades the remote archive schema.
func InitArchiveSchema(cfg config.Config, logger *slog.Logger) error {
	if cfg.ArchiveDBURL == "" {
		return fmt.Errorf("ARCHIVE_DB_URL is required to initialize the archive")
	}

	src, err := iofs.New(migrations.Archive, "archive")
	if err != nil {
		return fmt.Errorf("load archive migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.ArchiveDBURL)
	if err != nil {
		return fmt.Errorf("create archive migrator: %w", err)
	}
	defer closeMigrator(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply archive migrations: %w", err)
	}

	logger.Info("archive schema ready")
	return nil
}

// SeedLocal populates the demo meet into an initialized local store.
func SeedLocal(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := sqlite.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := sqlite.Seed(ctx, db); err != nil {
		return err
	}

	logger.Info("demo meet seeded", "path", cfg.LocalDBPath, "meet_code", "SL-2026-DEMO")
	return nil
}

func closeMigrator(m *migrate.Migrate, logger *slog.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("close migration source", "error", srcErr)
	}
	if dbErr != nil {
		logger.Warn("close migration database", "error", dbErr)
	}
}
