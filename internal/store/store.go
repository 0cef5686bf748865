// Package store provides storage backends for KataRoute.
//
// It persists the per-user conversation memory log and the routing
// decision audit trail. Backends: in-memory (default), SQLite,
// PostgreSQL, and Redis (memory log only).
package store

import (
	"context"
	"sync"
	"time"

	"github.com/katavoz/KataRoute/internal/models"
)

// MemoryStore persists the per-user conversation memory log. Reads
// filter by the supplied cutoff so callers never observe expired
// entries, whichever backend is active.
type MemoryStore interface {
	// AppendEntry appends one entry to the user's log.
	AppendEntry(ctx context.Context, userID string, e models.MemoryEntry) error

	// LatestEntry returns the most recent entry newer than since, or
	// nil when none qualifies.
	LatestEntry(ctx context.Context, userID string, since time.Time) (*models.MemoryEntry, error)

	// CountEntries reports the user's current log depth.
	CountEntries(ctx context.Context, userID string) (int, error)

	// PruneEntries removes entries older than cutoff, returning how
	// many were removed.
	PruneEntries(ctx context.Context, cutoff time.Time) (int64, error)
}

// DecisionStore persists routing decision records for the audit trail.
type DecisionStore interface {
	AddDecision(ctx context.Context, rec models.DecisionRecord) error
	// RecentDecisions returns up to limit records, newest first.
	RecentDecisions(ctx context.Context, limit int) ([]models.DecisionRecord, error)
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN       string
	RedisAddr string
	Retention time.Duration
}

// Option is a functional option for store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithRetention sets the retention window backends may use for native
// expiry (Redis TTL).
func WithRetention(d time.Duration) Option {
	return func(o *Opts) { o.Retention = d }
}

// maxInMemoryDecisions bounds the in-memory decision ring.
const maxInMemoryDecisions = 1000

// InMemoryStore keeps memory entries and decision records in process
// memory. It is the default backend and the one tests use.
type InMemoryStore struct {
	mu        sync.RWMutex
	entries   map[string][]models.MemoryEntry
	decisions []models.DecisionRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]models.MemoryEntry)}
}

// AppendEntry appends an entry to the user's log.
func (s *InMemoryStore) AppendEntry(ctx context.Context, userID string, e models.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = append(s.entries[userID], e)
	return nil
}

// LatestEntry returns the newest entry after since, or nil.
func (s *InMemoryStore) LatestEntry(ctx context.Context, userID string, since time.Time) (*models.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.entries[userID]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Timestamp.After(since) {
			e := log[i]
			return &e, nil
		}
	}
	return nil, nil
}

// CountEntries reports the user's log depth.
func (s *InMemoryStore) CountEntries(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[userID]), nil
}

// PruneEntries drops entries at or before cutoff.
func (s *InMemoryStore) PruneEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for userID, log := range s.entries {
		kept := log[:0]
		for _, e := range log {
			if e.Timestamp.After(cutoff) {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.entries, userID)
		} else {
			s.entries[userID] = kept
		}
	}
	return removed, nil
}

// AddDecision appends a decision record, evicting the oldest past the cap.
func (s *InMemoryStore) AddDecision(ctx context.Context, rec models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, rec)
	if len(s.decisions) > maxInMemoryDecisions {
		s.decisions = s.decisions[len(s.decisions)-maxInMemoryDecisions:]
	}
	return nil
}

// RecentDecisions returns up to limit records, newest first.
func (s *InMemoryStore) RecentDecisions(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.decisions) {
		limit = len(s.decisions)
	}
	out := make([]models.DecisionRecord, 0, limit)
	for i := len(s.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.decisions[i])
	}
	return out, nil
}
