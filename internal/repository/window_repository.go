package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinSeries/internal/domain/models"
	"FinSeries/internal/domain/repository"
	pkgkafka "FinSeries/pkg/kafka"
)

// WindowsSchema creates the closed-window table. ReplacingMergeTree keeps
// redeliveries of the same window idempotent.
func WindowsSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    series_id String,
    granularity LowCardinality(String),
    start_time DateTime64(3, 'UTC'),
    end_time DateTime64(3, 'UTC'),
    open Nullable(Float64),
    high Nullable(Float64),
    low Nullable(Float64),
    close Nullable(Float64),
    volume Nullable(Float64),
    vwap Nullable(Float64),
    data_point_count UInt32,
    filler UInt8,
    inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (series_id, granularity, start_time)`, database, table),
	}
}

const windowColumns = "series_id, granularity, start_time, end_time, open, high, low, close, volume, vwap, data_point_count, filler"

// ClickHouseWindowStorage implements WindowStorage for ClickHouse.
type ClickHouseWindowStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseWindowStorage creates ClickHouse storage. table is
// database-qualified.
func NewClickHouseWindowStorage(db *sql.DB, table string) *ClickHouseWindowStorage {
	return &ClickHouseWindowStorage{db: db, table: table}
}

func (s *ClickHouseWindowStorage) Init(ctx context.Context) error {
	return nil // schema is created by pkg/clickhouse at startup
}

func (s *ClickHouseWindowStorage) Store(ctx context.Context, w *models.AggregatedWindow) error {
	return s.StoreBatch(ctx, []*models.AggregatedWindow{w})
}

func (s *ClickHouseWindowStorage) StoreBatch(ctx context.Context, ws []*models.AggregatedWindow) error {
	if len(ws) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(ws); start += chunkSize {
		end := start + chunkSize
		if end > len(ws) {
			end = len(ws)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, w := range ws[start:end] {
			if w == nil || w.SeriesID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, windowRow(w)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, windowColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert windows: %w", err)
		}
	}
	return nil
}

// windowRow flattens w into insert arguments. Unrequested metrics are NULL.
func windowRow(w *models.AggregatedWindow) []interface{} {
	metric := func(m models.Metric, v float64) interface{} {
		if !w.Metrics.Has(m) {
			return nil
		}
		return v
	}
	var filler uint8
	if w.Filler {
		filler = 1
	}
	return []interface{}{
		w.SeriesID,
		w.Granularity.Label(),
		w.StartTime.UTC(),
		w.EndTime.UTC(),
		metric(models.MetricOpen, w.Open),
		metric(models.MetricHigh, w.High),
		metric(models.MetricLow, w.Low),
		metric(models.MetricClose, w.Close),
		metric(models.MetricVolume, w.Volume),
		metric(models.MetricVWAP, w.VWAP),
		uint32(w.DataPointCount),
		filler,
	}
}

// Query returns windows intersecting [from, to) in ascending start order.
func (s *ClickHouseWindowStorage) Query(ctx context.Context, seriesID string, g models.Granularity, from, to time.Time, limit int) ([]*models.AggregatedWindow, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE series_id = ? AND granularity = ? AND start_time < ? AND end_time > ? ORDER BY start_time ASC LIMIT ?", windowColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, seriesID, g.Label(), to.UTC(), from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	var out []*models.AggregatedWindow
	for rows.Next() {
		var (
			r      models.WindowResponse
			start  time.Time
			end    time.Time
			cnt    uint32
			filler uint8
			vals   [6]sql.NullFloat64
		)
		if err := rows.Scan(&r.SeriesID, &r.Granularity, &start, &end,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &cnt, &filler); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		r.StartTime = start.UnixMilli()
		r.EndTime = end.UnixMilli()
		r.DataPointCount = int(cnt)
		r.Filler = filler == 1
		r.Open, r.High, r.Low, r.Close, r.Volume, r.VWAP =
			nullable(vals[0]), nullable(vals[1]), nullable(vals[2]), nullable(vals[3]), nullable(vals[4]), nullable(vals[5])

		w, err := r.Window()
		if err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func (s *ClickHouseWindowStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseWindowStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaWindowPublisher implements WindowPublisher for Kafka. Messages are
// keyed by series so a partition preserves per-series order.
type KafkaWindowPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaWindowPublisher creates Kafka publisher.
func NewKafkaWindowPublisher(producer *pkgkafka.Producer, topic string) *KafkaWindowPublisher {
	return &KafkaWindowPublisher{producer: producer, topic: topic}
}

func (p *KafkaWindowPublisher) Publish(ctx context.Context, w *models.AggregatedWindow) error {
	return p.producer.Publish(ctx, p.topic, []byte(w.SeriesID), models.NewWindowResponse(*w, true))
}

func (p *KafkaWindowPublisher) PublishBatch(ctx context.Context, ws []*models.AggregatedWindow) error {
	if len(ws) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ws))
	for i, w := range ws {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(w.SeriesID),
			Value: models.NewWindowResponse(*w, true),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaWindowPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ repository.WindowStorage   = (*ClickHouseWindowStorage)(nil)
	_ repository.WindowPublisher = (*KafkaWindowPublisher)(nil)
)
