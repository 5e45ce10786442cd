package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(9440),
		WithDatabase("finseries"),
		WithCredentials("writer", "secret"),
		WithMaxExecutionTime(90 * time.Second),
		WithAsyncInsert(true, true),
		WithHTTP(true),
	} {
		opt(&cfg)
	}
	require.NoError(t, cfg.validate())

	opts := buildOptions(cfg)
	assert.Equal(t, []string{"ch.local:9440"}, opts.Addr)
	assert.Equal(t, "finseries", opts.Auth.Database)
	assert.Equal(t, "writer", opts.Auth.Username)
	assert.Equal(t, ch.HTTP, opts.Protocol)
	assert.Equal(t, 90, opts.Settings["max_execution_time"])
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
	require.NotNil(t, opts.Compression)
	assert.Equal(t, ch.CompressionLZ4, opts.Compression.Method)
}

func TestBuildOptionsDefaults(t *testing.T) {
	cfg := defaultConfig()
	WithHost("localhost")(&cfg)
	WithCompression(false)(&cfg)
	WithTimeouts(0, 0, 0)(&cfg)

	opts := buildOptions(cfg)
	assert.Equal(t, ch.Native, opts.Protocol)
	assert.Nil(t, opts.Compression)
	assert.Empty(t, opts.Settings)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.validate())

	cfg.Host = "localhost"
	cfg.MaxIdleConns = 20
	assert.Error(t, cfg.validate())

	cfg.MaxIdleConns = 2
	assert.NoError(t, cfg.validate())
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.ErrorContains(t, err, "host is required")
}
