// Package postgres provides the GORM-backed persistence layer.
package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/digipilot/account-service/internal/core/domain"
)

// Connect opens a Postgres connection pool and runs schema migration.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// migrate creates the role enum, the users table, and the partial unique
// index that enforces email uniqueness among non-deleted rows. The index
// closes the read-then-check race between concurrent registrations with
// the same address.
func migrate(db *gorm.DB) error {
	createEnum := `DO $$ BEGIN
		CREATE TYPE user_role AS ENUM ('root', 'customer');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$;`
	if err := db.Exec(createEnum).Error; err != nil {
		return fmt.Errorf("postgres: create role enum: %w", err)
	}

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("postgres: migrate users: %w", err)
	}

	uniqueEmail := `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_live
		ON users (email) WHERE is_deleted = false;`
	if err := db.Exec(uniqueEmail).Error; err != nil {
		return fmt.Errorf("postgres: create email index: %w", err)
	}
	return nil
}
