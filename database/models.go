package database

import (
	"context"
	"database/sql"
	"time"

	"configurablestub/database/internal"
)

// BatchConfig configures the journal writer
type BatchConfig struct {
	BatchSize     int           `json:"batch_size"`     // rows per insert transaction
	FlushInterval time.Duration `json:"flush_interval"` // flush partial batches this often
	MaxQueueSize  int           `json:"max_queue_size"` // pending entries before dropping
	Timeout       time.Duration `json:"timeout"`        // per batch insert
	RetryAttempts int           `json:"retry_attempts"`
}

// Transaction is one journaled dispatch
type Transaction = internal.Transaction

// InitDB opens (and creates if needed) the journal database
func InitDB(dbPath string) (*sql.DB, error) {
	return internal.InitDB(dbPath)
}

// QueryByRouteKey reads back the journal of one route
func QueryByRouteKey(ctx context.Context, db *sql.DB, routeKey string) ([]Transaction, error) {
	return internal.QueryByRouteKey(ctx, db, routeKey)
}
