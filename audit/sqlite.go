package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores entries in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) a SQLite database at dbPath and runs the
// schema migration.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_entries (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			component  TEXT NOT NULL,
			agent      TEXT NOT NULL,
			task       TEXT NOT NULL,
			result     TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Append implements Sink.
func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_entries (id, created_at, component, agent, task, result) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Component, e.Agent, e.Task, e.Result,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *SQLiteSink) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT id, created_at, component, agent, task, result FROM audit_entries ORDER BY seq DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &created, &e.Component, &e.Agent, &e.Task, &e.Result); err != nil {
			return nil, err
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Sink = (*SQLiteSink)(nil)
