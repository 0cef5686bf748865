package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katavoz/KataRoute/internal/models"
	"github.com/katavoz/KataRoute/internal/store"
)

func TestAsyncSink_RecordAndRecent(t *testing.T) {
	st := store.NewInMemoryStore()
	sink := NewAsyncSink(st, 16)

	sink.Record(models.DecisionRecord{ID: "r1", UserID: "u1", Path: models.PathClassic})
	sink.Record(models.DecisionRecord{ID: "r2", UserID: "u1", Path: models.PathGenerative})
	sink.Close()

	got, err := sink.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
	assert.Equal(t, "r1", got[1].ID)
	assert.Zero(t, sink.Dropped())
}

// blockingStore stalls AddDecision until released, so the queue fills.
type blockingStore struct {
	store.DecisionStore
	release chan struct{}
	started sync.Once
	first   chan struct{}
}

func (b *blockingStore) AddDecision(ctx context.Context, rec models.DecisionRecord) error {
	b.started.Do(func() { close(b.first) })
	<-b.release
	return b.DecisionStore.AddDecision(ctx, rec)
}

func TestAsyncSink_FullBufferDropsWithoutBlocking(t *testing.T) {
	bs := &blockingStore{
		DecisionStore: store.NewInMemoryStore(),
		release:       make(chan struct{}),
		first:         make(chan struct{}),
	}
	sink := NewAsyncSink(bs, 1)

	// First record occupies the consumer, second fills the buffer.
	sink.Record(models.DecisionRecord{ID: "a"})
	<-bs.first
	sink.Record(models.DecisionRecord{ID: "b"})

	done := make(chan struct{})
	go func() {
		sink.Record(models.DecisionRecord{ID: "c"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
	assert.Equal(t, int64(1), sink.Dropped())

	close(bs.release)
	sink.Close()
}

func TestAsyncSink_CloseDrains(t *testing.T) {
	st := store.NewInMemoryStore()
	sink := NewAsyncSink(st, 64)
	for i := 0; i < 20; i++ {
		sink.Record(models.DecisionRecord{ID: "r", UserID: "u1"})
	}
	sink.Close()

	got, err := st.RecentDecisions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestAsyncSink_CloseIsIdempotent(t *testing.T) {
	sink := NewAsyncSink(store.NewInMemoryStore(), 4)
	sink.Close()
	sink.Close()
}

func TestNopSink(t *testing.T) {
	var s NopSink
	s.Record(models.DecisionRecord{ID: "ignored"})
}
