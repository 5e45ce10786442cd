package repository

import (
	"context"
	"time"

	"FinSeries/internal/domain/models"
)

// TickStream is a live source of observations.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.TickMessage, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// WindowPublisher pushes closed windows onto a message bus.
type WindowPublisher interface {
	Publish(ctx context.Context, w *models.AggregatedWindow) error
	PublishBatch(ctx context.Context, ws []*models.AggregatedWindow) error
	Close() error
}

// WindowStorage persists closed windows outside the process.
type WindowStorage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, w *models.AggregatedWindow) error
	StoreBatch(ctx context.Context, ws []*models.AggregatedWindow) error
	Query(ctx context.Context, seriesID string, g models.Granularity, from, to time.Time, limit int) ([]*models.AggregatedWindow, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// WindowSink receives windows as they close. Submit must not block.
type WindowSink interface {
	Submit(ws []models.AggregatedWindow)
}

type Metrics interface {
	RecordPointAccepted(seriesID string)
	RecordPointRejected(reason string)
	RecordWindowClosed(seriesID, granularity string, filler bool)
	RecordMessageSent(backend, seriesID string)
	RecordError(kind string)
	RecordLastPrice(seriesID string, price float64)
	RecordLatency(op string, seconds float64)
}
