package usecase

import (
	"context"
	"fmt"
	"time"

	"FinSeries/internal/domain/models"
	drepo "FinSeries/internal/domain/repository"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendRedis      = "redis"
)

// WindowProcessor routes closed windows to the configured backend.
type WindowProcessor struct {
	pub     drepo.WindowPublisher
	store   drepo.WindowStorage
	metrics drepo.Metrics
	backend string
}

// NewWindowProcessor creates a processor. store serves both the clickhouse
// and redis backends.
func NewWindowProcessor(
	pub drepo.WindowPublisher,
	store drepo.WindowStorage,
	metrics drepo.Metrics,
	backend string,
) *WindowProcessor {
	if backend == "" {
		backend = BackendNone
	}
	return &WindowProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

func (p *WindowProcessor) Backend() string { return p.backend }

// Process sends a single window to the configured backend.
func (p *WindowProcessor) Process(ctx context.Context, w *models.AggregatedWindow) error {
	if w == nil {
		return fmt.Errorf("window is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = p.pub.Publish(ctx, w)
	case BackendClickHouse, BackendRedis:
		if p.store == nil {
			return fmt.Errorf("%s backend without storage", p.backend)
		}
		err = p.store.Store(ctx, w)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.recordError("process")
		return fmt.Errorf("process window: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordMessageSent(p.backend, w.SeriesID)
		p.metrics.RecordLatency("process", time.Since(start).Seconds())
	}
	return nil
}

// ProcessBatch sends windows in one call where the backend supports it.
func (p *WindowProcessor) ProcessBatch(ctx context.Context, ws []*models.AggregatedWindow) error {
	if len(ws) == 0 || p.backend == BackendNone {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = p.pub.PublishBatch(ctx, ws)
	case BackendClickHouse, BackendRedis:
		if p.store == nil {
			return fmt.Errorf("%s backend without storage", p.backend)
		}
		err = p.store.StoreBatch(ctx, ws)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.recordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	if p.metrics != nil {
		for _, w := range ws {
			p.metrics.RecordMessageSent(p.backend, w.SeriesID)
		}
		p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	}
	return nil
}

func (p *WindowProcessor) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

// Close closes underlying resources if available.
func (p *WindowProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
