// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mediaseal/mediaseal-backend/internal/config"
	"github.com/mediaseal/mediaseal-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.MediaAsset{},
		&models.VerificationRecord{},
		&models.ViolationRecord{},
		&models.Strike{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Media asset indexes
		"CREATE INDEX IF NOT EXISTS idx_media_assets_owner ON media_assets(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_media_assets_tier ON media_assets(tier)",
		"CREATE INDEX IF NOT EXISTS idx_media_assets_created_at ON media_assets(created_at DESC)",

		// Verification record indexes
		"CREATE INDEX IF NOT EXISTS idx_verification_records_status ON verification_records(status)",
		"CREATE INDEX IF NOT EXISTS idx_verification_records_original_sha ON verification_records(original_sha256)",
		"CREATE INDEX IF NOT EXISTS idx_verification_records_master_hash ON verification_records(master_hash)",
		"CREATE INDEX IF NOT EXISTS idx_verification_records_schema ON verification_records(schema_version)",

		// Violation indexes
		"CREATE INDEX IF NOT EXISTS idx_violation_records_ban ON violation_records(ban_status, ban_expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_strikes_violation ON strikes(violation_id)",
		"CREATE INDEX IF NOT EXISTS idx_strikes_fingerprint ON strikes(fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_strikes_created_at ON strikes(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
