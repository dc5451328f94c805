package queue_test

import (
	"context"
	"testing"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/queue"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(sessionID string, clientTS int64) event.Value {
	return event.NewBuilder().
		SetString("session_id", sessionID).
		SetInt("client_ts", clientTS).
		Build()
}

func TestSessions_UpsertOverwrites(t *testing.T) {
	_, st := newQueue(t)
	s := queue.NewSessions(st)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "s1", 1000, snapshot("s1", 1001)))
	require.NoError(t, s.Upsert(ctx, "s1", 1000, snapshot("s1", 1050)))

	rec, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.StartTS)
	assert.Equal(t, int64(1050), rec.Snapshot.GetInt("client_ts"))

	rows, err := st.Query(ctx, `SELECT COUNT(*) AS n FROM sessions`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0].Int64("n"))
}

func TestSessions_StaleExcludesCurrent(t *testing.T) {
	_, st := newQueue(t)
	s := queue.NewSessions(st)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "s1", 1000, snapshot("s1", 1200)))
	require.NoError(t, s.Upsert(ctx, "s0", 500, snapshot("s0", 600)))
	require.NoError(t, s.Upsert(ctx, "s2", 1400, snapshot("s2", 1500)))

	stale, err := s.Stale(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "s0", stale[0].SessionID)
	assert.Equal(t, "s1", stale[1].SessionID)
	assert.Equal(t, "s1", stale[1].Snapshot.GetString("session_id"))
}

func TestSessions_DeleteAndGetMissing(t *testing.T) {
	_, st := newQueue(t)
	s := queue.NewSessions(st)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "s1", 1, snapshot("s1", 1)))
	require.NoError(t, s.Delete(ctx, "s1"))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_UnreadableSnapshot(t *testing.T) {
	_, st := newQueue(t)
	s := queue.NewSessions(st)
	ctx := context.Background()

	_, err := st.Exec(ctx, `INSERT INTO sessions (session_id, timestamp, snapshot) VALUES ('bad', 1, '{oops')`)
	require.NoError(t, err)

	stale, err := s.Stale(ctx, "current")
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.True(t, stale[0].Snapshot.IsNull())
}
