package repository

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSeries/internal/domain/models"
	pkgcache "FinSeries/pkg/cache"
)

var t0 = time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)

type scored struct {
	score float64
	value string
}

// memCache is an in-process stand-in for Redis.
type memCache struct {
	kv        map[string]string
	zsets     map[string][]scored
	published []string
	closed    bool
}

func newMemCache() *memCache {
	return &memCache{kv: map[string]string{}, zsets: map[string][]scored{}}
}

func str(v interface{}) string {
	switch b := v.(type) {
	case []byte:
		return string(b)
	case string:
		return b
	}
	panic("unexpected value type")
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.kv[key] = str(value)
	return nil
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := c.kv[key]
	if !ok {
		return pkgcache.ErrCacheMiss
	}
	*dest.(*string) = v
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.kv, k)
	}
	return nil
}

func (c *memCache) AppendScored(_ context.Context, key string, score float64, value interface{}, keep int64, _ time.Duration) error {
	z := append(c.zsets[key], scored{score: score, value: str(value)})
	sort.Slice(z, func(i, j int) bool { return z[i].score < z[j].score })
	if keep > 0 && int64(len(z)) > keep {
		z = z[int64(len(z))-keep:]
	}
	c.zsets[key] = z
	return nil
}

func (c *memCache) RangeByScore(_ context.Context, key string, min, max float64, limit int64) ([]string, error) {
	var out []string
	for _, e := range c.zsets[key] {
		if e.score >= min && e.score < max {
			out = append(out, e.value)
		}
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (c *memCache) Publish(_ context.Context, _ string, value interface{}) error {
	c.published = append(c.published, str(value))
	return nil
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) Close() error {
	c.closed = true
	return nil
}

func minuteWindow(i int, close float64) *models.AggregatedWindow {
	start := t0.Add(time.Duration(i) * time.Minute)
	return &models.AggregatedWindow{
		SeriesID:       "AAPL",
		Granularity:    models.Min1,
		StartTime:      start,
		EndTime:        start.Add(time.Minute),
		Open:           close,
		Close:          close,
		DataPointCount: 1,
		Metrics:        models.NewMetricSet(models.MetricOpen, models.MetricClose),
	}
}

func TestRedisWindowStorageStoreAndQuery(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	s := NewRedisWindowStorage(c, "finseries:windows", 3, time.Hour)
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.StoreBatch(ctx, []*models.AggregatedWindow{
		minuteWindow(0, 100), minuteWindow(1, 101), minuteWindow(2, 102), minuteWindow(3, 103),
	}))

	assert.Len(t, c.published, 4)
	assert.Contains(t, c.kv["latest:AAPL:1m"], `"close":103`)

	// history keeps the last three windows
	got, err := s.Query(ctx, "AAPL", models.Min1, t0, t0.Add(time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 101.0, got[0].Close)
	assert.Equal(t, *minuteWindow(3, 103), *got[2])

	// a window straddling from is included
	got, err = s.Query(ctx, "AAPL", models.Min1, t0.Add(150*time.Second), t0.Add(3*time.Minute), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 102.0, got[0].Close)

	_, err = s.Query(ctx, "AAPL", models.Granularity("HOUR_2"), t0, t0.Add(time.Hour), 10)
	assert.ErrorIs(t, err, models.ErrUnsupportedGranularity)

	require.NoError(t, s.Close())
	assert.True(t, c.closed)
}

func TestWindowRowNullsUnrequestedMetrics(t *testing.T) {
	w := minuteWindow(0, 100)
	w.Filler = true
	row := windowRow(w)

	require.Len(t, row, 12)
	assert.Equal(t, "AAPL", row[0])
	assert.Equal(t, "1m", row[1])
	assert.Equal(t, 100.0, row[4])
	assert.Nil(t, row[5])
	assert.Nil(t, row[9])
	assert.Equal(t, uint32(1), row[10])
	assert.Equal(t, uint8(1), row[11])
}

func TestWindowsSchema(t *testing.T) {
	stmts := WindowsSchema("finseries", "windows")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS finseries")
	assert.Contains(t, stmts[1], "finseries.windows")
	assert.Contains(t, stmts[1], "ORDER BY (series_id, granularity, start_time)")
}
