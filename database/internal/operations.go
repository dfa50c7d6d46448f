package internal

import (
	"context"
	"database/sql"
	"time"
)

// Transaction is one dispatched request and the response it produced
type Transaction struct {
	UUID                string    `json:"uuid" db:"uuid"`
	RouteKey            string    `json:"route_key" db:"route_key"`
	RequestMethod       string    `json:"request_method" db:"request_method"`
	RequestEndpoint     string    `json:"request_endpoint" db:"request_endpoint"`
	RequestHeaders      string    `json:"request_headers" db:"request_headers"`
	RequestBody         string    `json:"request_body" db:"request_body"`
	ResponseStatusCode  int       `json:"response_status_code" db:"response_status_code"`
	ResponseContentType string    `json:"response_content_type" db:"response_content_type"`
	ResponseBody        string    `json:"response_body" db:"response_body"`
	Outcome             string    `json:"outcome" db:"outcome"`
	Timestamp           time.Time `json:"timestamp" db:"timestamp"`
}

const insertTransaction = `
	INSERT INTO stub_transactions (
		uuid, route_key, request_method, request_endpoint, request_headers,
		request_body, response_status_code, response_content_type,
		response_body, outcome, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertBatch inserts transactions inside one database transaction
func InsertBatch(ctx context.Context, db *sql.DB, batch []*Transaction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTransaction)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range batch {
		if _, err := stmt.ExecContext(ctx, args(t)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QueryByRouteKey returns the journaled transactions of a route in insertion order
func QueryByRouteKey(ctx context.Context, db *sql.DB, routeKey string) ([]Transaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT uuid, route_key, request_method, request_endpoint, request_headers,
		       request_body, response_status_code, response_content_type,
		       response_body, outcome
		FROM stub_transactions WHERE route_key = ? ORDER BY rowid`, routeKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.UUID,
			&t.RouteKey,
			&t.RequestMethod,
			&t.RequestEndpoint,
			&t.RequestHeaders,
			&t.RequestBody,
			&t.ResponseStatusCode,
			&t.ResponseContentType,
			&t.ResponseBody,
			&t.Outcome,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func args(t *Transaction) []interface{} {
	return []interface{}{
		t.UUID,
		t.RouteKey,
		t.RequestMethod,
		t.RequestEndpoint,
		t.RequestHeaders,
		t.RequestBody,
		t.ResponseStatusCode,
		t.ResponseContentType,
		t.ResponseBody,
		t.Outcome,
		t.Timestamp,
	}
}
