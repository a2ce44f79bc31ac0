package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("user:a"))
	assert.True(t, rl.allow("user:a"))
	assert.False(t, rl.allow("user:a"))
	assert.True(t, rl.allow("user:b"), "keys are limited independently")

	now = now.Add(time.Second)
	assert.True(t, rl.allow("user:a"))
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	rl.allow("user:idle")
	now = now.Add(2 * time.Minute)
	rl.allow("user:busy")
	assert.Len(t, rl.visitors, 2)

	now = now.Add(2 * time.Minute)
	rl.allow("user:busy")

	_, idle := rl.visitors["user:idle"]
	assert.False(t, idle)
	assert.Contains(t, rl.visitors, "user:busy")
}
