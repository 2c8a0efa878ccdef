package db

import (
	"database/sql"
	"fmt"
	"time"

	"user_manager/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

func Init(DBCfg *config.DBConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", DBCfg.Host, DBCfg.Port, DBCfg.User, DBCfg.Password, DBCfg.Name, DBCfg.SSLMode)

	var db *sql.DB
	var err error

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to open database connection (attempt %d/%d)", i+1, maxRetries)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if err = db.Ping(); err != nil {
			logrus.WithError(err).Warnf("Failed to ping database (attempt %d/%d)", i+1, maxRetries)
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database connection")
			}
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		// Connection successful
		break
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logrus.Info("Database connection established successfully")
	return db, nil
}

// Migrate creates the activity journal schema if it does not exist yet.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_activity (
			id          BIGSERIAL PRIMARY KEY,
			event_id    UUID UNIQUE NOT NULL,
			session_id  VARCHAR(64) NOT NULL,
			action      VARCHAR(16) NOT NULL,
			user_id     INTEGER NOT NULL,
			user_name   TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_activity table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS user_activity_occurred_at_idx ON user_activity (occurred_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create user_activity index: %w", err)
	}

	return nil
}
