package config

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectSQLite opens an embedded database through the same models. Used by
// tests and by local runs without Postgres (postgres.host: "sqlite").
func ConnectSQLite(dsn string, verbose bool) (*gorm.DB, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true}
	if verbose {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("reading underlying sql.DB: %w", err)
	}
	// one writer at a time
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
