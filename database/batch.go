package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"configurablestub/database/internal"

	"github.com/SOLUCIONESSYCOM/scribe"
)

var (
	ErrJournalNotRunning = errors.New("journal not running")
	ErrQueueFull         = errors.New("journal queue is full")
)

// BatchManager groups journal entries and writes them in batches from a
// single goroutine so that dispatch never waits on the database.
type BatchManager struct {
	DB     *sql.DB
	Config BatchConfig
	Logger *scribe.Scribe

	input   chan *Transaction
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	TotalProcessed int64
	TotalBatches   int64
	TotalErrors    int64
	TotalDropped   int64
}

func NewBatchManager(db *sql.DB, config BatchConfig, logger *scribe.Scribe) *BatchManager {
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 2 * time.Second
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 10000
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}

	return &BatchManager{
		DB:     db,
		Config: config,
		Logger: logger,
	}
}

// Open initialises the database at path and returns a started manager
func Open(path string, config BatchConfig, logger *scribe.Scribe) (*BatchManager, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}

	bm := NewBatchManager(db, config, logger)
	bm.Start()
	return bm, nil
}

// Start launches the aggregator goroutine
func (bm *BatchManager) Start() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.running {
		return
	}

	bm.input = make(chan *Transaction, bm.Config.MaxQueueSize)
	bm.running = true

	bm.wg.Add(1)
	go bm.aggregate(bm.input)

	bm.Logger.Info().
		Int("batch_size", bm.Config.BatchSize).
		Str("flush_interval", bm.Config.FlushInterval.String()).
		Msg("Journal started")
}

// Stop flushes pending entries and waits for the writer to finish
func (bm *BatchManager) Stop() {
	bm.mu.Lock()
	if !bm.running {
		bm.mu.Unlock()
		return
	}
	bm.running = false
	close(bm.input)
	bm.mu.Unlock()

	bm.wg.Wait()

	bm.Logger.Info().
		Int("processed", int(atomic.LoadInt64(&bm.TotalProcessed))).
		Int("dropped", int(atomic.LoadInt64(&bm.TotalDropped))).
		Msg("Journal stopped")
}

// Close stops the manager and closes the database
func (bm *BatchManager) Close() error {
	bm.Stop()
	return bm.DB.Close()
}

// AddOperation queues a transaction without blocking
func (bm *BatchManager) AddOperation(t *Transaction) error {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	if !bm.running {
		return ErrJournalNotRunning
	}

	select {
	case bm.input <- t:
		return nil
	default:
		atomic.AddInt64(&bm.TotalDropped, 1)
		return ErrQueueFull
	}
}

// IsRunning reports whether the writer accepts entries
func (bm *BatchManager) IsRunning() bool {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return bm.running
}

// GetStats returns journal counters
func (bm *BatchManager) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"is_running":      bm.IsRunning(),
		"total_processed": atomic.LoadInt64(&bm.TotalProcessed),
		"total_batches":   atomic.LoadInt64(&bm.TotalBatches),
		"total_errors":    atomic.LoadInt64(&bm.TotalErrors),
		"total_dropped":   atomic.LoadInt64(&bm.TotalDropped),
		"batch_size":      bm.Config.BatchSize,
		"flush_interval":  bm.Config.FlushInterval,
	}
}

func (bm *BatchManager) aggregate(input <-chan *Transaction) {
	defer bm.wg.Done()

	ticker := time.NewTicker(bm.Config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Transaction, 0, bm.Config.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		bm.processBatch(batch)
		batch = make([]*Transaction, 0, bm.Config.BatchSize)
	}

	for {
		select {
		case t, ok := <-input:
			if !ok {
				flush()
				return
			}
			batch = append(batch, t)
			if len(batch) >= bm.Config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// processBatch writes a batch, retrying with a linear backoff
func (bm *BatchManager) processBatch(batch []*Transaction) {
	var lastErr error

	for attempt := 1; attempt <= bm.Config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), bm.Config.Timeout)
		err := internal.InsertBatch(ctx, bm.DB, batch)
		cancel()

		if err == nil {
			atomic.AddInt64(&bm.TotalBatches, 1)
			atomic.AddInt64(&bm.TotalProcessed, int64(len(batch)))
			return
		}

		lastErr = err
		if attempt < bm.Config.RetryAttempts {
			bm.Logger.Warn().
				Int("attempt", attempt).
				Int("batch_size", len(batch)).
				AnErr("error", err).
				Msg("Journal batch failed, retrying")
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}

	atomic.AddInt64(&bm.TotalErrors, 1)
	bm.Logger.Error().
		Int("batch_size", len(batch)).
		AnErr("error", lastErr).
		Msg("Journal batch dropped after retries")
}
