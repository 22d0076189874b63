package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"billiard-admin-backend/config"
	"billiard-admin-backend/internal/model"
)

// Init opens the database, applies pool settings and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg.EnableExclusionConstraint); err != nil {
		return nil, err
	}
	log.Println("Database initialization complete.")
	return db, nil
}

// Open connects to postgres for postgres:// DSNs and to sqlite otherwise.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(Dialector(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(LogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// Dialector picks the gorm driver for dsn.
func Dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// LogLevel maps a config string onto the gorm logger level.
func LogLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, exclusionConstraint bool) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Table{},
		&model.Booking{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if exclusionConstraint {
		if db.Dialector.Name() != "postgres" {
			log.Println("Exclusion constraint requested but database is not postgres; skipping.")
			return nil
		}
		log.Println("Applying booking exclusion constraint...")
		if err := applyExclusionDDL(db); err != nil {
			log.Printf("Warning: failed to apply exclusion constraint DDL: %v. Continuing without it.", err)
		}
	}
	return nil
}

// applyExclusionDDL makes postgres reject a second active booking whose
// window intersects an existing one on the same table.
func applyExclusionDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_window_valid;",
		"ALTER TABLE bookings ADD CONSTRAINT bookings_window_valid CHECK (start_time < end_time);",

		"ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_no_active_overlap;",
		"ALTER TABLE bookings ADD CONSTRAINT bookings_no_active_overlap " +
			"EXCLUDE USING GIST (table_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&) " +
			"WHERE (status IN ('Reserved', 'InProgress'));",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
