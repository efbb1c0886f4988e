// Package ledger persists boost payment history to Postgres. The ledger is
// optional: when no DATABASE_URL is configured the service runs without it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Ledger struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := &Ledger{pool: pool}
	if err := l.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() {
	l.pool.Close()
}

func (l *Ledger) migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS boost_payments (
			id BIGSERIAL PRIMARY KEY,
			batch_id TEXT NOT NULL,
			album_id TEXT NOT NULL DEFAULT '',
			track_title TEXT NOT NULL DEFAULT '',
			recipient TEXT NOT NULL,
			address TEXT NOT NULL,
			method TEXT NOT NULL,
			amount_sats BIGINT NOT NULL,
			preimage TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_boost_payments_batch_id ON boost_payments(batch_id);
		CREATE INDEX IF NOT EXISTS idx_boost_payments_created_at ON boost_payments(created_at);
	`)
	return err
}

// Payment is a single ledger row.
type Payment struct {
	BatchID    string    `json:"batch_id"`
	AlbumID    string    `json:"album_id"`
	TrackTitle string    `json:"track_title"`
	Recipient  string    `json:"recipient"`
	Address    string    `json:"address"`
	Method     string    `json:"method"`
	AmountSats int64     `json:"amount_sats"`
	Preimage   string    `json:"preimage,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordBatch inserts all payments of one boost in a single transaction.
func (l *Ledger) RecordBatch(ctx context.Context, payments []Payment) error {
	if len(payments) == 0 {
		return nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range payments {
		_, err := tx.Exec(ctx,
			`INSERT INTO boost_payments (batch_id, album_id, track_title, recipient, address, method, amount_sats, preimage, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.BatchID, p.AlbumID, p.TrackTitle, p.Recipient, p.Address, p.Method, p.AmountSats, p.Preimage, p.Error,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// RecentBoosts returns the latest ledger rows, newest first.
func (l *Ledger) RecentBoosts(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT batch_id, album_id, track_title, recipient, address, method, amount_sats, preimage, error, created_at
		 FROM boost_payments
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.BatchID, &p.AlbumID, &p.TrackTitle, &p.Recipient, &p.Address, &p.Method, &p.AmountSats, &p.Preimage, &p.Error, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
