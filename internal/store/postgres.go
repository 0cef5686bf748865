// This file implements the PostgreSQL-backed store for conversation
// memory and decision records.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/katavoz/KataRoute/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements MemoryStore and DecisionStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore ready")
	return &PostgresStore{db: db}, nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// AppendEntry inserts one conversation memory entry.
func (s *PostgresStore) AppendEntry(ctx context.Context, userID string, e models.MemoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_memory (user_id, session_id, ts, query, response, domain) VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, e.SessionID, e.Timestamp, e.Query, e.Response, e.Domain)
	if err != nil {
		slog.Error("PostgresStore AppendEntry failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert memory entry for %s: %w", userID, err)
	}
	return nil
}

// LatestEntry returns the newest entry after since, or nil.
func (s *PostgresStore) LatestEntry(ctx context.Context, userID string, since time.Time) (*models.MemoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, ts, query, response, domain FROM conversation_memory
		 WHERE user_id = $1 AND ts > $2 ORDER BY ts DESC LIMIT 1`,
		userID, since)
	var e models.MemoryEntry
	if err := row.Scan(&e.SessionID, &e.Timestamp, &e.Query, &e.Response, &e.Domain); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("PostgresStore LatestEntry scan failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptEntry, err)
	}
	return &e, nil
}

// CountEntries reports the user's log depth.
func (s *PostgresStore) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_memory WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memory entries: %w", err)
	}
	return n, nil
}

// PruneEntries deletes entries at or before cutoff.
func (s *PostgresStore) PruneEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_memory WHERE ts <= $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore PruneEntries failed", "error", err)
		return 0, fmt.Errorf("failed to prune memory entries: %w", err)
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}

// AddDecision inserts one decision record.
func (s *PostgresStore) AddDecision(ctx context.Context, rec models.DecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_records (id, user_id, input_preview, path, rule, classic_intent, classic_confidence, domain, memory_reason, error, received_at, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.UserID, rec.InputPreview, string(rec.Path), rec.Rule,
		rec.ClassicIntent, rec.ClassicConfidence, rec.Domain,
		string(rec.MemoryReason), rec.Error, rec.ReceivedAt, rec.LatencyMS)
	if err != nil {
		slog.Error("PostgresStore AddDecision failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit records, newest first.
func (s *PostgresStore) RecentDecisions(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = maxInMemoryDecisions
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, input_preview, path, rule, classic_intent, classic_confidence, domain, memory_reason, error, received_at, latency_ms
		 FROM decision_records ORDER BY received_at DESC LIMIT $1`, limit)
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
