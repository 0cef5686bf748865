// Package audit persists routing decision records off the hot path.
//
// The async sink buffers records on a channel drained by a single
// consumer goroutine, so a slow decision store never delays routing.
// When the buffer is full the record is dropped and counted rather
// than blocking the caller.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/katavoz/KataRoute/internal/models"
	"github.com/katavoz/KataRoute/internal/store"
)

// Sink receives one record per routing decision.
type Sink interface {
	Record(rec models.DecisionRecord)
}

// defaultQueueSize bounds the async sink buffer when none is configured.
const defaultQueueSize = 256

// AsyncSink writes decision records to a DecisionStore from a
// background goroutine.
type AsyncSink struct {
	store   store.DecisionStore
	queue   chan models.DecisionRecord
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// NewAsyncSink starts the consumer goroutine. queueSize <= 0 selects
// the default buffer size.
func NewAsyncSink(st store.DecisionStore, queueSize int) *AsyncSink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &AsyncSink{
		store: st,
		queue: make(chan models.DecisionRecord, queueSize),
		done:  make(chan struct{}),
	}
	go s.consume()
	return s
}

// Record enqueues the record without blocking. Full buffer drops the
// record and bumps the dropped counter.
func (s *AsyncSink) Record(rec models.DecisionRecord) {
	select {
	case s.queue <- rec:
	default:
		n := s.dropped.Add(1)
		slog.Warn("AsyncSink.Record: buffer full, dropping record", "dropped", n, "userID", rec.UserID)
	}
}

// Dropped reports how many records were dropped since start.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Recent returns up to limit persisted records, newest first.
func (s *AsyncSink) Recent(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	return s.store.RecentDecisions(ctx, limit)
}

// Close stops accepting records and drains the queue before returning.
func (s *AsyncSink) Close() {
	s.once.Do(func() {
		close(s.queue)
		<-s.done
	})
}

func (s *AsyncSink) consume() {
	defer close(s.done)
	for rec := range s.queue {
		if err := s.store.AddDecision(context.Background(), rec); err != nil {
			slog.Error("AsyncSink: failed to persist decision record", "error", err, "recordID", rec.ID)
		}
	}
}

// NopSink discards every record. Used when auditing is disabled.
type NopSink struct{}

func (NopSink) Record(models.DecisionRecord) {}
