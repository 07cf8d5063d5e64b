package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_MinuteLimit(t *testing.T) {
	rl := NewRateLimiter(3, 0, 0, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Check("client-a", 0))
	}

	err := rl.Check("client-a", 0)
	require.Error(t, err)

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 3, rle.Limit)
}

func TestRateLimiter_ClientsIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 0, 0, 0)

	require.NoError(t, rl.Check("client-a", 0))
	require.Error(t, rl.Check("client-a", 0))

	// A different client still has its own budget.
	assert.NoError(t, rl.Check("client-b", 0))
}

func TestRateLimiter_DailyRequestQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 2, 0)

	require.NoError(t, rl.Check("client-a", 0))
	require.NoError(t, rl.Check("client-a", 0))

	err := rl.Check("client-a", 0)
	require.Error(t, err)

	var qee *QuotaExceededError
	require.True(t, errors.As(err, &qee))
	assert.Equal(t, "requests", qee.Type)
	assert.Equal(t, int64(2), qee.Limit)
	assert.Equal(t, int64(2), qee.Used)
	assert.False(t, qee.Resets.IsZero())
}

func TestRateLimiter_DailyDataQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 1000)

	require.NoError(t, rl.Check("client-a", 600))

	err := rl.Check("client-a", 600)
	require.Error(t, err)

	var qee *QuotaExceededError
	require.True(t, errors.As(err, &qee))
	assert.Equal(t, "data", qee.Type)
	assert.Equal(t, int64(600), qee.Used)
}

func TestRateLimiter_ZeroLimitsAllowEverything(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)

	for i := 0; i < 100; i++ {
		assert.NoError(t, rl.Check("client-a", 1<<20))
	}
}
