package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 5000, c.Server.Port)
	assert.Equal(t, 365, c.Forecast.MaxSteps)
	assert.Equal(t, 100, c.Forecast.Forest.Trees)
	assert.Equal(t, 0.3, c.Forecast.Boosting.LearningRate)
	assert.Equal(t, uint64(42), c.Forecast.Seed)
	assert.Equal(t, 10*time.Minute, c.Cache.TTL)
	assert.Equal(t, "forecast.requests", c.Kafka.RequestTopic)
	assert.False(t, c.Kafka.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
server:
  port: 8088
forecast:
  max_steps: 30
  boosting:
    rounds: 50
cache:
  ttl: 1m
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 8088, c.Server.Port)
	assert.Equal(t, 30, c.Forecast.MaxSteps)
	assert.Equal(t, 50, c.Forecast.Boosting.Rounds)
	assert.Equal(t, 6, c.Forecast.Boosting.MaxDepth)
	assert.Equal(t, time.Minute, c.Cache.TTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka:\n  enabled: true\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "kafka.brokers")
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("FORECAST_ENV", "staging")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "cache.internal:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")

	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Cache.Redis.Enabled)
	assert.Equal(t, "cache.internal", c.Cache.Redis.Host)
	assert.Equal(t, 6380, c.Cache.Redis.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.ClickHouse.Enabled)
	assert.Equal(t, "ch.internal", c.ClickHouse.Host)
}

func TestLoadWithEnvBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "http")
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "HTTP_PORT")
}
