package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TIMER_TICK_MS", "")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("JWT_EXPIRY_HOURS", "")
	t.Setenv("AUTO_MIGRATE", "")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.TimerTick)
	assert.Equal(t, StoreDriverPostgres, cfg.SessionStore)
	assert.Equal(t, 60, cfg.SecondsPerQuestion)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TIMER_TICK_MS", "250")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("QUESTION_CACHE_TTL_MINUTES", "nope")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg := Load()

	assert.Equal(t, 250*time.Millisecond, cfg.TimerTick)
	assert.Equal(t, StoreDriverMemory, cfg.SessionStore)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.QuestionCacheTTL)
	assert.True(t, cfg.AutoMigrate)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "question:q1:meta", CacheKey.QuestionMetaKey("q1"))
	assert.Equal(t, "session:s1:events", CacheKey.SessionEventsChannel("s1"))
	assert.Equal(t, "exam_type:mcat:monitor", CacheKey.ExamTypeMonitorChannel("mcat"))
}
