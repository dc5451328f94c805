package store_test

import (
	"context"
	"testing"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters_GetSetIncrement(t *testing.T) {
	st := newMemoryStore(t)
	c := store.NewCounters(st)
	ctx := context.Background()

	n, err := c.Get(ctx, store.KeySessionNum)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.Increment(ctx, store.KeySessionNum)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Increment(ctx, store.KeySessionNum)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.Set(ctx, store.KeyTransactionNum, 41))
	n, err = c.Increment(ctx, store.KeyTransactionNum)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestCounters_ProgressionTries(t *testing.T) {
	st := newMemoryStore(t)
	c := store.NewCounters(st)
	ctx := context.Background()

	tries, err := c.ProgressionTries(ctx, "world1:level1")
	require.NoError(t, err)
	assert.Equal(t, 0, tries)

	tries, err = c.IncrementProgressionTries(ctx, "world1:level1")
	require.NoError(t, err)
	assert.Equal(t, 1, tries)

	tries, err = c.IncrementProgressionTries(ctx, "world1:level1")
	require.NoError(t, err)
	assert.Equal(t, 2, tries)

	// Other progressions are independent
	tries, err = c.IncrementProgressionTries(ctx, "world1:level2")
	require.NoError(t, err)
	assert.Equal(t, 1, tries)

	require.NoError(t, c.ClearProgressionTries(ctx, "world1:level1"))
	tries, err = c.ProgressionTries(ctx, "world1:level1")
	require.NoError(t, err)
	assert.Equal(t, 0, tries)

	// Clearing a missing progression is not an error
	assert.NoError(t, c.ClearProgressionTries(ctx, "missing"))
}

func TestCounters_Strings(t *testing.T) {
	st := newMemoryStore(t)
	c := store.NewCounters(st)
	ctx := context.Background()

	v, err := c.GetString(ctx, store.KeyDefaultUserID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, c.SetString(ctx, store.KeyDefaultUserID, "user-1"))
	v, err = c.GetString(ctx, store.KeyDefaultUserID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", v)

	// Non-numeric values surface as parse errors through Get
	_, err = c.Get(ctx, store.KeyDefaultUserID)
	assert.ErrorContains(t, err, "parse default_user_id")
}
