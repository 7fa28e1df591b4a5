package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_HashOperations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.HashGet(ctx, "h", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.HashSet(ctx, "h", "a", "1"))
	require.NoError(t, s.HashSet(ctx, "h", "b", "2"))

	val, ok, err := s.HashGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	multi, err := s.HashMultiGet(ctx, "h", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, multi)

	require.NoError(t, s.HashDelete(ctx, "h", "a", "c"))
	_, ok, err = s.HashGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SortedSetScore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.SortedSetScore(ctx, "z", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		tx.SortedSetAdd("z", 100, "u1")
		tx.SortedSetAdd("z", 200, "u2")
	}))

	score, ok, err := s.SortedSetScore(ctx, "z", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), score)

	// Re-adding a member overwrites its score.
	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		tx.SortedSetAdd("z", 300, "u1")
	}))
	score, _, err = s.SortedSetScore(ctx, "z", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), score)
}

func TestMemoryStore_SortedSetRemoveCountsPresentMembers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		tx.SortedSetAdd("z", 1, "u1")
	}))

	var removed *IntReply
	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		removed = tx.SortedSetRemove("z", "u1", "u2")
	}))
	assert.Equal(t, int64(1), removed.Val())

	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		removed = tx.SortedSetRemove("z", "u1")
	}))
	assert.Equal(t, int64(0), removed.Val())
}

func TestMemoryStore_SortedSetRangeByScoreMax(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		tx.SortedSetAdd("z", 30, "u3")
		tx.SortedSetAdd("z", 10, "u1")
		tx.SortedSetAdd("z", 20, "u2")
	}))

	var inRange *StringsReply
	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		inRange = tx.SortedSetRangeByScoreMax("z", 20)
	}))
	assert.Equal(t, []string{"u1", "u2"}, inRange.Val())

	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		tx.SortedSetRemoveByScoreMax("z", 20)
	}))
	_, ok, err := s.SortedSetScore(ctx, "z", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.SortedSetScore(ctx, "z", "u3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_RangeAndRemoveInOneTransaction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		tx.SortedSetAdd("z", 5, "stale")
		tx.SortedSetAdd("z", 500, "fresh")
	}))

	var expired *StringsReply
	require.NoError(t, s.Atomically(ctx, func(tx Tx) {
		expired = tx.SortedSetRangeByScoreMax("z", 100)
		tx.SortedSetRemoveByScoreMax("z", 100)
	}))

	assert.Equal(t, []string{"stale"}, expired.Val())
	_, ok, err := s.SortedSetScore(ctx, "z", "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
