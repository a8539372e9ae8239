package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "0.0.0.0:5000", cfg.GetServerAddress())

	assert.Equal(t, 2222, cfg.Honeypot.SSHPort)
	assert.Equal(t, 8080, cfg.Honeypot.HTTPPort)
	assert.Equal(t, 2121, cfg.Honeypot.FTPPort)
	assert.Empty(t, cfg.Honeypot.AutoStart)
	assert.Zero(t, cfg.Honeypot.MaxSessions)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "honeypot.alerts", cfg.Kafka.AlertTopic)
	assert.Equal(t, 60*time.Second, cfg.Redis.SuppressTTL)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("HONEYPOT_SSH_PORT", "2022")
	t.Setenv("HONEYPOT_AUTOSTART", "ssh, http ,ftp")
	t.Setenv("HONEYPOT_MAX_SESSIONS", "64")
	t.Setenv("STORE_BACKEND", "clickhouse")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("API_KEY", "sekrit")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, 2022, cfg.Honeypot.SSHPort)
	assert.Equal(t, []string{"ssh", "http", "ftp"}, cfg.Honeypot.AutoStart)
	assert.Equal(t, 64, cfg.Honeypot.MaxSessions)
	assert.Equal(t, "clickhouse", cfg.Store.Backend)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_BadIntFallsBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, 5000, cfg.Server.Port)
}
