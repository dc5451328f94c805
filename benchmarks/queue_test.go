package benchmarks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/queue"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
)

// BenchmarkQueue_Add measures persisting one event to a file-backed store.
func BenchmarkQueue_Add(b *testing.B) {
	st, cleanup := createSQLiteStore(b)
	defer cleanup()
	q := queue.New(st)
	ctx := context.Background()
	payload := designPayload(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Add(ctx, event.Design, "session-1", int64(i), payload)
	}
}

// BenchmarkQueue_ClaimCommit_500 measures one full-size claim and commit.
func BenchmarkQueue_ClaimCommit_500(b *testing.B) {
	st, cleanup := createSQLiteStore(b)
	defer cleanup()
	q := queue.New(st)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		fillQueue(b, q, queue.DefaultBatchSize)
		b.StartTimer()

		requestID, _, err := q.Claim(ctx, event.CategoryAny, queue.DefaultBatchSize)
		if err != nil {
			b.Fatal(err)
		}
		_, _ = q.Commit(ctx, requestID)
	}
}

// BenchmarkQueue_ClaimPutback measures a failed delivery round trip.
func BenchmarkQueue_ClaimPutback(b *testing.B) {
	st, cleanup := createSQLiteStore(b)
	defer cleanup()
	q := queue.New(st)
	ctx := context.Background()
	fillQueue(b, q, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		requestID, _, _ := q.Claim(ctx, event.CategoryAny, queue.DefaultBatchSize)
		_, _ = q.Putback(ctx, requestID)
	}
}

// BenchmarkSessions_Upsert measures the per-event session bookkeeping.
func BenchmarkSessions_Upsert(b *testing.B) {
	st, cleanup := createSQLiteStore(b)
	defer cleanup()
	sessions := queue.NewSessions(st)
	ctx := context.Background()
	snapshot := event.NewBuilder().
		SetString("session_id", "session-1").
		SetInt("client_ts", 1700000000).
		SetString("user_id", "user-1").
		Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sessions.Upsert(ctx, "session-1", 1700000000, snapshot)
	}
}

// BenchmarkStore_Size measures the admission size probe.
func BenchmarkStore_Size(b *testing.B) {
	st, cleanup := createSQLiteStore(b)
	defer cleanup()
	fillQueue(b, queue.New(st), 1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = st.Size(ctx)
	}
}

func createSQLiteStore(b *testing.B) (*store.SQLiteStore, func()) {
	b.Helper()
	dir, err := os.MkdirTemp("", "eventpipe-bench")
	if err != nil {
		b.Fatal(err)
	}
	st, err := store.NewSQLiteStore(filepath.Join(dir, "events.db"))
	if err != nil {
		os.RemoveAll(dir)
		b.Fatal(err)
	}
	return st, func() {
		_ = st.Close()
		os.RemoveAll(dir)
	}
}

func fillQueue(b *testing.B, q *queue.Queue, n int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := q.Add(ctx, event.Design, "session-1", int64(i), designPayload(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func designPayload(i int) []byte {
	return []byte(fmt.Sprintf(`{"category":"design","event_id":"level:%d","session_id":"session-1","client_ts":%d}`, i, i))
}
