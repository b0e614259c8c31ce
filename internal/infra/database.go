package infra

import (
	"fmt"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection, runs AutoMigrate for every table
// the engine owns, then applies the idempotent SQL patches AutoMigrate cannot
// express (partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates the schema. Integration tests call it
// directly against their container.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("extension pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Farm{},
		&model.Warehouse{},
		&model.Shipment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements. Each one uses
// IF NOT EXISTS semantics so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// partial index for the sync retry cron query
		`CREATE INDEX IF NOT EXISTS idx_carregamentos_documento_pendente
		    ON carregamentos (documento_next_retry_at)
		    WHERE documento_status = 'pendente'`,
		// suggestion queries scan these free-text columns
		`CREATE INDEX IF NOT EXISTS idx_carregamentos_plate ON carregamentos (plate)`,
		`CREATE INDEX IF NOT EXISTS idx_carregamentos_produto ON carregamentos (produto)`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
