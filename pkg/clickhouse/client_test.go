package clickhouse

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg, err := newConfig([]ClientOption{
		WithHost("ch.local"),
		WithPort(9440),
		WithDatabase("forecasting"),
		WithCredentials("svc", "p@ss"),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(30 * time.Second),
	})
	require.NoError(t, err)

	u, err := url.Parse(buildDSN(*cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9440", u.Host)
	assert.Equal(t, "/forecasting", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))
	assert.Equal(t, "30", q.Get("max_execution_time"))
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Empty(t, q.Get("write_timeout"))
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg, err := newConfig([]ClientOption{WithHost("localhost"), WithHTTP(true), WithTimeouts(0, 0, 0)})
	require.NoError(t, err)

	u, err := url.Parse(buildDSN(*cfg))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Empty(t, u.RawQuery)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(context.Background())
	assert.EqualError(t, err, "host is required")
}

func TestConfigValidation(t *testing.T) {
	_, err := newConfig([]ClientOption{WithHost("h"), WithPort(70000)})
	assert.ErrorContains(t, err, "port")

	_, err = newConfig([]ClientOption{WithHost("h"), WithDatabase("db; DROP")})
	assert.ErrorContains(t, err, "invalid database")

	cfg, err := newConfig([]ClientOption{WithHost("h"), WithMaxConnections(4, 8)})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestTable(t *testing.T) {
	c := &Client{database: "forecasting"}
	name, err := c.Table("forecast_history")
	require.NoError(t, err)
	assert.Equal(t, "forecasting.forecast_history", name)

	_, err = c.Table("history`")
	assert.Error(t, err)
	assert.True(t, ValidIdentifier("_t1"))
	assert.False(t, ValidIdentifier("1t"))
}
