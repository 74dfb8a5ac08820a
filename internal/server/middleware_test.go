package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reactango/internal/logging"
)

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, logging.Nop())
	require.NotNil(t, l)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	active := l.get("10.0.0.1")
	require.True(t, active.Allow())
	l.get("10.0.0.2")
	assert.Len(t, l.clients, 2)

	// Only the first client keeps sending requests.
	clock = clock.Add(limiterIdle / 2)
	assert.Same(t, active, l.get("10.0.0.1"))

	clock = clock.Add(limiterIdle / 2)
	l.get("10.0.0.3")
	assert.Len(t, l.clients, 2)
	assert.Contains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.3")
	assert.NotContains(t, l.clients, "10.0.0.2")

	// The surviving limiter keeps its spent burst.
	assert.Same(t, active, l.get("10.0.0.1"))
	assert.False(t, active.Allow())
}

func TestNewRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, newRateLimiter(RateLimitConfig{}, logging.Nop()))
}
