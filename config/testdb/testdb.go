// Package testdb gives each test its own migrated in-memory database.
package testdb

import (
	"testing"

	"github.com/Maxapelquist/preparty-social-hub/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := config.ConnectSQLite(dsn, false)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := config.MigrateDatabase(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
