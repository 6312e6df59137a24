package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration to the database at dsn
func Migrate(dsn string, log *zap.Logger) error {
	log.Info("Running database migration")

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	m.Log = &migrationLogger{logger: log}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Database migration: no change needed")
			return nil
		}
		log.Error("Database migration failed", zap.Error(err))
		return err
	}
	log.Info("Database migration complete")
	return nil
}

type migrationLogger struct {
	logger *zap.Logger
}

func (l *migrationLogger) Printf(format string, v ...any) {
	l.logger.Sugar().Infof("DB Migration: "+format, v...)
}

func (l *migrationLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
