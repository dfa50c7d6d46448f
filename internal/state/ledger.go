package state

import (
	"sync"

	"configurablestub/internal/models"
)

// RequestLedger keeps, per route key, every captured request in arrival order
type RequestLedger struct {
	mu       sync.RWMutex
	requests map[models.RouteKey][]models.RequestRecord
}

// NewRequestLedger creates an empty ledger
func NewRequestLedger() *RequestLedger {
	return &RequestLedger{
		requests: make(map[models.RouteKey][]models.RequestRecord),
	}
}

// Append adds record to the end of the sequence for key
func (l *RequestLedger) Append(key models.RouteKey, record models.RequestRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests[key] = append(l.requests[key], record)
}

// GetAll returns a copy of the sequence recorded for key
func (l *RequestLedger) GetAll(key models.RouteKey) ([]models.RequestRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, ok := l.requests[key]
	if !ok {
		return nil, false
	}

	out := make([]models.RequestRecord, len(records))
	copy(out, records)
	return out, true
}

// GetOne returns the first request ever recorded for key.
// The control endpoint that exposes it is historically called "last request";
// existing clients depend on the first-of-sequence result.
func (l *RequestLedger) GetOne(key models.RouteKey) (models.RequestRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.requests[key]
	if len(records) == 0 {
		return models.RequestRecord{}, false
	}
	return records[0], true
}

// ResetAll swaps the backing map for an empty one
func (l *RequestLedger) ResetAll() {
	fresh := make(map[models.RouteKey][]models.RequestRecord)

	l.mu.Lock()
	l.requests = fresh
	l.mu.Unlock()
}

// Count returns the total number of records across all keys
func (l *RequestLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, records := range l.requests {
		total += len(records)
	}
	return total
}
