package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(1<<20), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 256, cfg.Dispatch.QueueSize)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example.com, http://b.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("DISPATCH_WORKERS", "8")
	t.Setenv("DISPATCH_QUEUE_SIZE", "512")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9999", cfg.Port)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 512, cfg.Dispatch.QueueSize)
}

func TestNewConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("DISPATCH_WORKERS", "0")

	cfg := NewConfigFromEnv()

	assert.Equal(t, int64(1<<20), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
}

func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		Port:           "",
		AllowedOrigins: []string{" http://Chat.Example.com ", "", "*"},
		MaxMessageSize: -1,
		Dispatch:       DispatchConfig{Workers: -2, QueueSize: 0},
	})

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(1<<20), cfg.MaxMessageSize)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 256, cfg.Dispatch.QueueSize)
	assert.Equal(t, []string{"http://chat.example.com"}, cfg.AllowedOrigins)
}

func TestOriginNormalization(t *testing.T) {
	normalized, allowAll := normalizeOrigins([]string{"HTTP://Example.com", "*", "not a url", ""})

	assert.True(t, allowAll)
	assert.Equal(t, []string{"http://example.com"}, normalized)

	_, ok := normalizeOrigin("missing-scheme.com")
	assert.False(t, ok)
}
