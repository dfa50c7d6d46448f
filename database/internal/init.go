package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBConfig connection pool settings
type DBConfig struct {
	MaxOpenConns    int
	MinConn         int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func InitDB(dbPath string) (*sql.DB, error) {
	return InitDBWithConfig(dbPath, DBConfig{
		MaxOpenConns:    1,
		MinConn:         1,
		ConnMaxLifetime: 0,
		ConnMaxIdleTime: 0,
	})
}

func InitDBWithConfig(dbPath string, config DBConfig) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// WAL lets external tools read the journal while the stub writes it
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting synchronous mode: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MinConn)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	createTable := `
	CREATE TABLE IF NOT EXISTS stub_transactions (
		uuid TEXT PRIMARY KEY,
		route_key TEXT NOT NULL,
		request_method TEXT NOT NULL,
		request_endpoint TEXT NOT NULL,
		request_headers TEXT,
		request_body TEXT,
		response_status_code INTEGER,
		response_content_type TEXT,
		response_body TEXT,
		outcome TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	createIndexes := `
	CREATE INDEX IF NOT EXISTS idx_transactions_route_key ON stub_transactions(route_key);
	CREATE INDEX IF NOT EXISTS idx_transactions_outcome ON stub_transactions(outcome);
	`

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating transactions table: %w", err)
	}

	if _, err := db.Exec(createIndexes); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating indexes: %w", err)
	}

	return db, nil
}
