package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinSeries/internal/domain/models"
	"FinSeries/internal/domain/repository"
	pkgcache "FinSeries/pkg/cache"
)

// RedisWindowStorage keeps the latest window per series and granularity,
// a capped history sorted by start time, and announces every window on a
// pub/sub channel.
type RedisWindowStorage struct {
	cache        pkgcache.Service
	channel      string
	historyLimit int64
	ttl          time.Duration
}

func NewRedisWindowStorage(cache pkgcache.Service, channel string, historyLimit int64, ttl time.Duration) *RedisWindowStorage {
	return &RedisWindowStorage{cache: cache, channel: channel, historyLimit: historyLimit, ttl: ttl}
}

func latestKey(seriesID string, g models.Granularity) string {
	return pkgcache.Key("latest", seriesID, g.Label())
}

func historyKey(seriesID string, g models.Granularity) string {
	return pkgcache.Key("history", seriesID, g.Label())
}

func (s *RedisWindowStorage) Init(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func (s *RedisWindowStorage) Store(ctx context.Context, w *models.AggregatedWindow) error {
	if w == nil {
		return fmt.Errorf("window is nil")
	}
	payload, err := json.Marshal(models.NewWindowResponse(*w, true))
	if err != nil {
		return fmt.Errorf("encode window: %w", err)
	}
	if err := s.cache.Set(ctx, latestKey(w.SeriesID, w.Granularity), payload, s.ttl); err != nil {
		return fmt.Errorf("set latest: %w", err)
	}
	score := float64(w.StartTime.UnixMilli())
	if err := s.cache.AppendScored(ctx, historyKey(w.SeriesID, w.Granularity), score, payload, s.historyLimit, s.ttl); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if s.channel != "" {
		if err := s.cache.Publish(ctx, s.channel, payload); err != nil {
			return fmt.Errorf("publish window: %w", err)
		}
	}
	return nil
}

func (s *RedisWindowStorage) StoreBatch(ctx context.Context, ws []*models.AggregatedWindow) error {
	for _, w := range ws {
		if err := s.Store(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// Query returns windows intersecting [from, to) from the retained history.
func (s *RedisWindowStorage) Query(ctx context.Context, seriesID string, g models.Granularity, from, to time.Time, limit int) ([]*models.AggregatedWindow, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedGranularity, g)
	}
	// a window starting after from-duration still ends after from
	min := float64(from.UnixMilli() - g.DurationMs() + 1)
	max := float64(to.UnixMilli())
	raw, err := s.cache.RangeByScore(ctx, historyKey(seriesID, g), min, max, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("range history: %w", err)
	}
	return decodeWindows(raw)
}

func decodeWindows(raw []string) ([]*models.AggregatedWindow, error) {
	out := make([]*models.AggregatedWindow, 0, len(raw))
	for _, item := range raw {
		var r models.WindowResponse
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode window: %w", err)
		}
		w, err := r.Window()
		if err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, nil
}

func (s *RedisWindowStorage) Health(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func (s *RedisWindowStorage) Close() error {
	return s.cache.Close()
}

var _ repository.WindowStorage = (*RedisWindowStorage)(nil)
