package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// SQLiteStore writes records to the logs table of a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring sqlite database %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite database %s: %w", path, err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date TEXT NOT NULL,
  client TEXT NOT NULL,
  query TEXT NOT NULL,
  q_type TEXT NOT NULL,
  server TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_date ON logs(date);
CREATE INDEX IF NOT EXISTS idx_logs_client ON logs(client);
CREATE INDEX IF NOT EXISTS idx_logs_query ON logs(query);
`)
	return err
}

// Store inserts one record.
func (s *SQLiteStore) Store(ctx context.Context, rec parser.QueryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs(date, client, query, q_type, server) VALUES(?,?,?,?,?)`,
		rec.Timestamp.Format(time.RFC3339), rec.Client, rec.Query, rec.QType, rec.Server)
	if err != nil {
		return fmt.Errorf("inserting %s record for %s: %w", rec.QType, rec.Query, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM logs`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Records returns stored records in insertion order, up to limit (all if
// limit <= 0).
func (s *SQLiteStore) Records(ctx context.Context, limit int) ([]parser.QueryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, client, query, q_type, server FROM logs ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []parser.QueryRecord
	for rows.Next() {
		var date string
		var rec parser.QueryRecord
		if err := rows.Scan(&date, &rec.Client, &rec.Query, &rec.QType, &rec.Server); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("decoding stored date %q: %w", date, err)
		}
		rec.Timestamp = ts
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
