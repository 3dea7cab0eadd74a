package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RECONCILE_INTERVAL", "")

	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.BasePath)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
	assert.True(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Elasticsearch.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NATS_ENABLED", "false")
	t.Setenv("RECONCILE_INTERVAL", "15s")
	t.Setenv("WS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{TimeZone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
