package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"

	_ "github.com/lib/pq"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// ConnectGORM returns a GORM DB instance connected to PostgreSQL
func ConnectGORM(cfg PostgresConfig) (*gorm.DB, error) {
	// NOTE: See https://github.com/go-gorm/gorm/issues/5409
	sqlConn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	gormConfig := &gorm.Config{TranslateError: true}
	if cfg.Verbose {
		gormConfig.Logger = logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Info,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		)
	}

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{
		Conn:                 sqlConn,
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("reading underlying sql.DB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&postgres.User{},
		&postgres.Profile{},
		&postgres.Friendship{},
		&postgres.Group{},
		&postgres.GroupMember{},
		&postgres.Party{},
		&postgres.PartyAttendee{},
		&postgres.DirectConversation{},
		&postgres.DirectMessage{},
		&postgres.GroupConversation{},
		&postgres.GroupMessage{},
		&postgres.Question{},
		&postgres.Game{},
		&postgres.GameParticipant{},
		&postgres.GameRound{},
	}
}

// MigrateDatabase migrates the GORM models to the database
func MigrateDatabase(db *gorm.DB) error {
	// NOTE: postgres driver pinned to v1.4.0, see https://github.com/pilinux/gorest/issues/167#issuecomment-1947114560
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	// usernames are unique regardless of case
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username_lower ON profiles (LOWER(username))`).Error; err != nil {
		return fmt.Errorf("creating username index: %w", err)
	}
	return nil
}
