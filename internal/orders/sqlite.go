package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	appendRetries   = 3
	appendBaseDelay = 50 * time.Millisecond
)

// SQLiteSink appends orders to a SQLite table. Rows are never updated or deleted.
type SQLiteSink struct {
	db      *sql.DB
	writeMu sync.Mutex // single writer so concurrent appends never interleave
}

// NewSQLite opens (and creates if needed) the order database at dbPath.
func NewSQLite(dbPath string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sink := &SQLiteSink{db: db}
	if err := sink.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return sink, nil
}

func (s *SQLiteSink) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source TEXT NOT NULL,
		total_cents INTEGER NOT NULL,
		record_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append stores the order. Appending an id that already exists is a no-op, so
// a retried confirmation cannot produce a second row.
func (s *SQLiteSink) Append(ctx context.Context, order domain.Order) error {
	rec := NewRecord(order)
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	query := `
	INSERT INTO orders (id, user_id, source, total_cents, record_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var inserted int64
	err = shared.RetryOnConflict(ctx, appendRetries, appendBaseDelay, "append order", func() error {
		result, execErr := s.db.ExecContext(ctx, query,
			order.ID, order.Customer.UserID, string(order.Source),
			order.Total.Shift(2).IntPart(), string(body), order.CreatedAt.Unix(),
		)
		if execErr != nil {
			return execErr
		}
		inserted, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	if inserted == 0 {
		slog.Warn("Order already recorded, skipping duplicate append", "order_id", order.ID)
	}
	return nil
}

// Recent returns up to limit orders, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM orders ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent orders rows", "error", closeErr)
		}
	}()

	var out []Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decode order row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

// Count returns the number of stored orders.
func (s *SQLiteSink) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
