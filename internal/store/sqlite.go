// This file implements the SQLite-backed store for conversation memory
// and decision records.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/katavoz/KataRoute/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements MemoryStore and DecisionStore on a local
// SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file
// path). The parent directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore ready", "dsn", dsn)
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendEntry inserts one conversation memory entry.
func (s *SQLiteStore) AppendEntry(ctx context.Context, userID string, e models.MemoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_memory (user_id, session_id, ts, query, response, domain) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, e.SessionID, e.Timestamp, e.Query, e.Response, e.Domain)
	if err != nil {
		slog.Error("SQLiteStore AppendEntry failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert memory entry for %s: %w", userID, err)
	}
	return nil
}

// LatestEntry returns the newest entry after since, or nil.
func (s *SQLiteStore) LatestEntry(ctx context.Context, userID string, since time.Time) (*models.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, ts, query, response, domain FROM conversation_memory
		 WHERE user_id = ? AND ts > ? ORDER BY ts DESC LIMIT 1`,
		userID, since)
	var e models.MemoryEntry
	if err := row.Scan(&e.SessionID, &e.Timestamp, &e.Query, &e.Response, &e.Domain); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("SQLiteStore LatestEntry scan failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptEntry, err)
	}
	return &e, nil
}

// CountEntries reports the user's log depth.
func (s *SQLiteStore) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_memory WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memory entries: %w", err)
	}
	return n, nil
}

// PruneEntries deletes entries at or before cutoff.
func (s *SQLiteStore) PruneEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_memory WHERE ts <= ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore PruneEntries failed", "error", err)
		return 0, fmt.Errorf("failed to prune memory entries: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		slog.Debug("SQLiteStore PruneEntries removed entries", "count", removed)
	}
	return removed, nil
}

// AddDecision inserts one decision record.
func (s *SQLiteStore) AddDecision(ctx context.Context, rec models.DecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_records (id, user_id, input_preview, path, rule, classic_intent, classic_confidence, domain, memory_reason, error, received_at, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.InputPreview, string(rec.Path), rec.Rule,
		rec.ClassicIntent, rec.ClassicConfidence, rec.Domain,
		string(rec.MemoryReason), rec.Error, rec.ReceivedAt, rec.LatencyMS)
	if err != nil {
		slog.Error("SQLiteStore AddDecision failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit records, newest first.
func (s *SQLiteStore) RecentDecisions(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = maxInMemoryDecisions
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, input_preview, path, rule, classic_intent, classic_confidence, domain, memory_reason, error, received_at, latency_ms
		 FROM decision_records ORDER BY received_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}
	defer rows.Close()

	var out []models.DecisionRecord
	for rows.Next() {
		var rec models.DecisionRecord
		var path, reason string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.InputPreview, &path, &rec.Rule,
			&rec.ClassicIntent, &rec.ClassicConfidence, &rec.Domain, &reason,
			&rec.Error, &rec.ReceivedAt, &rec.LatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		rec.Path = models.Path(path)
		rec.MemoryReason = models.MemoryReason(reason)
		out = append(out, rec)
	}
	return out, rows.Err()
}
