package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.True(t, cfg.Server.Metrics)
	assert.Equal(t, "shared-calculator", cfg.Calculator.DefaultSessionID)
	assert.Equal(t, "postgres", cfg.Calculator.StoreDriver)
	assert.False(t, cfg.Auth.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("CALCULATOR_PERSIST_TIMEOUT", "3")
	t.Setenv("PRESENCE_TTL", "90s")
	t.Setenv("WS_SUBSCRIBER_BUFFER", "not-a-number")
	t.Setenv("METRICS_ENABLED", "0")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Calculator.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.Calculator.PersistTimeout)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.PresenceTTL)
	assert.Equal(t, 64, cfg.WebSocket.SubscriberBuffer)
	assert.False(t, cfg.Server.Metrics)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Auth.Enabled())
}
