package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/state"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T, opts ...state.Option) (*state.State, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return state.New(store.NewCounters(st), opts...), st
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestState_LoadGeneratesAndKeepsUserID(t *testing.T) {
	s, st := newState(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	first := s.UserID()
	require.NotEmpty(t, first)

	// A second State over the same store sees the persisted id.
	again := state.New(store.NewCounters(st))
	require.NoError(t, again.Load(ctx))
	assert.Equal(t, first, again.UserID())
}

func TestState_ExplicitUserID(t *testing.T) {
	s, _ := newState(t, state.WithUserID("player-7"))
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, "player-7", s.UserID())
}

func TestState_LoadRestoresCounters(t *testing.T) {
	s, st := newState(t)
	ctx := context.Background()

	c := store.NewCounters(st)
	require.NoError(t, c.Set(ctx, store.KeySessionNum, 4))
	require.NoError(t, c.Set(ctx, store.KeyTransactionNum, 9))

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 4, s.SessionNum())
	assert.Equal(t, 9, s.TransactionNum())

	n, err := s.IncrementSessionNum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, s.SessionNum())

	n, err = s.IncrementTransactionNum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestState_ServerOffset(t *testing.T) {
	s, _ := newState(t, state.WithClock(fixedClock(1000)))

	assert.Equal(t, int64(1000), s.AdjustedClientTS())

	s.SetServerTime(1060)
	assert.Equal(t, int64(60), s.ServerOffset())
	assert.Equal(t, int64(1060), s.AdjustedClientTS())
	assert.Equal(t, int64(1000), s.ClientTS())

	s.SetServerTime(0)
	assert.Equal(t, int64(0), s.ServerOffset())
}

func TestState_SessionLifecycle(t *testing.T) {
	s, _ := newState(t, state.WithClock(fixedClock(1000)))
	assert.False(t, s.SessionStarted())

	id := s.BeginSession()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, s.SessionID())
	assert.Equal(t, int64(1000), s.SessionStart())
	assert.True(t, s.SessionStarted())

	next := s.BeginSession()
	assert.NotEqual(t, id, next)

	s.EndSession()
	assert.False(t, s.SessionStarted())
	assert.Empty(t, s.SessionID())
}

func TestState_CustomDimensions(t *testing.T) {
	s, _ := newState(t, state.WithAvailableDimensions([]string{"ninja", "samurai"}, nil, []string{}))

	require.NoError(t, s.SetCustomDimension(1, "ninja"))
	assert.ErrorIs(t, s.SetCustomDimension(1, "pirate"), state.ErrInvalidDimension)

	// nil list accepts anything
	require.NoError(t, s.SetCustomDimension(2, "anything"))

	// empty list accepts nothing but clearing
	assert.ErrorIs(t, s.SetCustomDimension(3, "x"), state.ErrInvalidDimension)
	require.NoError(t, s.SetCustomDimension(3, ""))

	assert.ErrorIs(t, s.SetCustomDimension(0, "x"), state.ErrInvalidDimension)
	assert.ErrorIs(t, s.SetCustomDimension(4, "x"), state.ErrInvalidDimension)

	assert.Equal(t, [3]string{"ninja", "anything", ""}, s.Dimensions())
}

func TestState_Flags(t *testing.T) {
	s, _ := newState(t, state.WithErrorReporting(false), state.WithManualSessionHandling(true))

	assert.True(t, s.SubmissionEnabled())
	assert.False(t, s.Initialized())
	assert.False(t, s.ErrorReporting())
	assert.True(t, s.ManualSessionHandling())

	s.SetSubmissionEnabled(false)
	s.SetInitialized(true)
	assert.False(t, s.SubmissionEnabled())
	assert.True(t, s.Initialized())
}

func TestState_Annotations(t *testing.T) {
	s, _ := newState(t,
		state.WithClock(fixedClock(1500)),
		state.WithUserID("u1"),
		state.WithBuild("alpha 0.1"),
	)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	_, err := s.IncrementSessionNum(ctx)
	require.NoError(t, err)
	id := s.BeginSession()

	a := s.Annotations()
	assert.Equal(t, int64(2), a.GetInt("v"))
	assert.Equal(t, "u1", a.GetString("user_id"))
	assert.Equal(t, int64(1500), a.GetInt("client_ts"))
	assert.Equal(t, id, a.GetString("session_id"))
	assert.Equal(t, int64(1), a.GetInt("session_num"))
	assert.Equal(t, "alpha 0.1", a.GetString("build"))
	assert.Equal(t, state.SDKVersion, a.GetString("sdk_version"))

	e := s.SDKErrorAnnotations()
	assert.Equal(t, state.SDKErrorCategory, e.GetString("category"))
	_, hasSession := e.Get("session_id")
	assert.False(t, hasSession)

	i := s.InitAnnotations()
	assert.Equal(t, "u1", i.GetString("user_id"))
}

func TestState_AnnotationsOmitEmptyBuild(t *testing.T) {
	s, _ := newState(t, state.WithUserID("u1"))
	_, ok := s.Annotations().Get("build")
	assert.False(t, ok)
}
