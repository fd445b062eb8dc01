package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreSlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewInMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := range 3 {
		res, err := s.Allow(ctx, "198.51.100.7", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		now = now.Add(10 * time.Second)
	}

	res, err := s.Allow(ctx, "198.51.100.7", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 30*time.Second, res.RetryAfter, "oldest request leaves the window at 12:01:00")

	// The first request has left the window.
	now = time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)
	res, err = s.Allow(ctx, "198.51.100.7", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestInMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	res, err := s.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = s.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = s.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, s.Len())
}
